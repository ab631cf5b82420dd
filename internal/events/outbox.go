package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Job describes a notification to enqueue.
type Job struct {
	TenantID    snowflake.ID
	Kind        string
	Channel     string
	Recipient   string
	TemplateKey string
	Variables   map[string]any
	DedupeKey   string
	RunAt       time.Time
}

// Outbox inserts notification jobs into the notification_jobs table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Enqueue stores a job using the default database connection.
func (o *Outbox) Enqueue(ctx context.Context, job Job) error {
	return o.enqueue(ctx, o.db, job)
}

// EnqueueTx stores a job using an existing transaction so the notification
// commits or rolls back with the state change that caused it.
func (o *Outbox) EnqueueTx(ctx context.Context, tx *gorm.DB, job Job) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.enqueue(ctx, tx, job)
}

func (o *Outbox) enqueue(ctx context.Context, db *gorm.DB, job Job) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if job.TenantID == 0 {
		return errors.New("invalid_tenant_id")
	}
	kind := strings.TrimSpace(job.Kind)
	if kind == "" {
		return errors.New("missing_job_kind")
	}
	recipient := strings.TrimSpace(job.Recipient)
	if recipient == "" {
		return errors.New("missing_recipient")
	}
	dedupe := strings.TrimSpace(job.DedupeKey)
	if dedupe == "" {
		return errors.New("missing_dedupe_key")
	}

	variables := datatypes.JSONMap{}
	for key, value := range job.Variables {
		if strings.TrimSpace(key) == "" {
			continue
		}
		variables[key] = value
	}

	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}

	record := &NotificationJob{
		ID:          o.genID.Generate(),
		TenantID:    job.TenantID,
		Kind:        kind,
		Channel:     strings.TrimSpace(job.Channel),
		Recipient:   recipient,
		TemplateKey: strings.TrimSpace(job.TemplateKey),
		Variables:   variables,
		DedupeKey:   dedupe,
		RunAt:       runAt,
		Status:      JobStatusPending,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}
