package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// IngestWatermarkDao is a data access object that maps directly to the 'ingest_watermarks' table in PostgreSQL.
// LastProcessedTs is epoch milliseconds of the newest source file fully processed for the type.
type IngestWatermarkDao struct {
	bun.BaseModel   `bun:"table:ingest_watermarks,alias:iw"`
	IngestionType   string    `json:"ingestion_type" bun:",pk,type:varchar(64)"`
	LastProcessedTs int64     `json:"last_processed_ts" bun:",notnull,use_zero"`
	UpdatedAt       time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
