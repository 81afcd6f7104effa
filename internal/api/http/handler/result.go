package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/result"
)

const documentFormField = "file"

type ResultHandler struct {
	svc result.Service
}

func NewResultHandler(svc result.Service) *ResultHandler {
	return &ResultHandler{svc: svc}
}

func resultIDParam(c fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// POST /results
func (h *ResultHandler) Create(c fiber.Ctx) error {
	var body struct {
		PatientID *string         `json:"patient_id"`
		TestName  string          `json:"test_name"`
		Values    json.RawMessage `json:"values"`
		Notes     *string         `json:"notes"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	req := result.CreateRequest{TestName: body.TestName, Values: body.Values, Notes: body.Notes}
	if body.PatientID != nil && *body.PatientID != "" {
		pid, err := uuid.Parse(*body.PatientID)
		if err != nil {
			return badRequest(c, "patient_id must be a valid id")
		}
		req.PatientID = &pid
	}

	r, err := h.svc.Create(c.Context(), middleware.SessionFromFiber(c), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, r)
}

// GET /results?patient_id=&limit=
func (h *ResultHandler) List(c fiber.Ctx) error {
	var f result.ListFilter
	if raw := c.Query("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "patient_id must be a valid id")
		}
		f.PatientID = &pid
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a positive number")
		}
		f.Limit = n
	}

	list, err := h.svc.List(c.Context(), middleware.SessionFromFiber(c), f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, list)
}

// GET /results/:id
func (h *ResultHandler) Get(c fiber.Ctx) error {
	id, valid := resultIDParam(c)
	if !valid {
		return badRequest(c, "invalid result id")
	}

	r, err := h.svc.Get(c.Context(), middleware.SessionFromFiber(c), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, r)
}

// POST /results/:id/document (multipart, field "file")
func (h *ResultHandler) UploadDocument(c fiber.Ctx) error {
	id, valid := resultIDParam(c)
	if !valid {
		return badRequest(c, "invalid result id")
	}

	fh, err := c.FormFile(documentFormField)
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "could not read file")
	}
	defer f.Close()

	r, err := h.svc.AttachDocument(c.Context(), middleware.SessionFromFiber(c), id, result.Document{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, r)
}

// GET /results/:id/document
func (h *ResultHandler) DocumentURL(c fiber.Ctx) error {
	id, valid := resultIDParam(c)
	if !valid {
		return badRequest(c, "invalid result id")
	}

	url, err := h.svc.DocumentURL(c.Context(), middleware.SessionFromFiber(c), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"url": url})
}
