package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	profilesTable    = "profiles"
	resultsTable     = "results"
	ordersTable      = "orders"
	messagesTable    = "messages"
	subscribersTable = "subscribers"
)

var (
	ProfilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "email", Type: field.TypeString, Unique: true},
		{Name: "full_name", Type: field.TypeString, Nullable: true},
		{Name: "phone", Type: field.TypeString, Nullable: true},
		{Name: "user_type", Type: field.TypeEnum, Enums: []string{"patient", "doctor", "admin"}, Default: "patient"},
		{Name: "ai_consent", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	ProfilesTable = &schema.Table{
		Name:       profilesTable,
		Columns:    ProfilesColumns,
		PrimaryKey: []*schema.Column{ProfilesColumns[0]},
	}

	ResultsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "patient_id", Type: field.TypeUUID},
		{Name: "test_name", Type: field.TypeString},
		{Name: "values", Type: field.TypeJSON},
		{Name: "notes", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "document_key", Type: field.TypeString, Nullable: true},
		{Name: "ai_summary", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "ai_summary_generated_at", Type: field.TypeTime, Nullable: true},
		{Name: "ai_risk_flags", Type: field.TypeJSON, Nullable: true},
		{Name: "ai_risk_flags_generated_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	ResultsTable = &schema.Table{
		Name:       resultsTable,
		Columns:    ResultsColumns,
		PrimaryKey: []*schema.Column{ResultsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "result_patient_id_created_at", Columns: []*schema.Column{ResultsColumns[1], ResultsColumns[10]}},
		},
	}

	OrdersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "stripe_session_id", Type: field.TypeString, Unique: true},
		{Name: "user_id", Type: field.TypeUUID, Nullable: true},
		{Name: "kind", Type: field.TypeEnum, Enums: []string{"payment", "subscription"}},
		{Name: "amount", Type: field.TypeInt64},
		{Name: "currency", Type: field.TypeString, Size: 3},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"pending", "paid", "failed", "cancelled"}, Default: "pending"},
		{Name: "metadata", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	OrdersTable = &schema.Table{
		Name:       ordersTable,
		Columns:    OrdersColumns,
		PrimaryKey: []*schema.Column{OrdersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "order_user_id", Columns: []*schema.Column{OrdersColumns[2]}},
		},
	}

	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "sender_id", Type: field.TypeUUID},
		{Name: "recipient_id", Type: field.TypeUUID},
		{Name: "related_result_id", Type: field.TypeUUID, Nullable: true},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "read_at", Type: field.TypeTime, Nullable: true},
	}
	MessagesTable = &schema.Table{
		Name:       messagesTable,
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "message_sender_id", Columns: []*schema.Column{MessagesColumns[1]}},
			{Name: "message_recipient_id_read_at", Columns: []*schema.Column{MessagesColumns[2], MessagesColumns[6]}},
		},
	}

	SubscribersColumns = []*schema.Column{
		{Name: "email", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeUUID, Nullable: true},
		{Name: "stripe_customer_id", Type: field.TypeString, Nullable: true},
		{Name: "subscribed", Type: field.TypeBool, Default: false},
		{Name: "subscription_tier", Type: field.TypeString, Nullable: true},
		{Name: "subscription_end", Type: field.TypeTime, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	SubscribersTable = &schema.Table{
		Name:       subscribersTable,
		Columns:    SubscribersColumns,
		PrimaryKey: []*schema.Column{SubscribersColumns[0]},
	}

	Tables = []*schema.Table{
		ProfilesTable,
		ResultsTable,
		OrdersTable,
		MessagesTable,
		SubscribersTable,
	}
)

// Schema runs ent's Atlas-backed migration engine over the tables above.
type Schema struct {
	drv dialect.Driver
}

func (s *Schema) Create(ctx context.Context, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(s.drv, opts...)
	if err != nil {
		return fmt.Errorf("repo: init migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
