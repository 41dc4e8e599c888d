// Package domain defines the persistence models for the knowledge base:
// services, uploaded documents, their searchable chunks, conversation
// history, and the query audit log. These types are mapped with GORM and
// form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// DocumentStatus is the ingestion lifecycle state of a Document.
//
// Transitions: PENDING -> PROCESSING -> {READY | ERROR}. ERROR (or READY)
// may be reset to PENDING via an explicit reprocess request, which purges
// the document's chunks first.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusReady      DocumentStatus = "READY"
	StatusError      DocumentStatus = "ERROR"
)

// Valid reports whether s is one of the defined lifecycle states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Service represents an organizational service (e.g. "VPN", "SAP") that
// documents and queries are scoped to. Service CRUD is owned by the admin
// surface outside this core; rows here exist as foreign-key targets and for
// analytics grouping.
//
// Fields:
//   - ID: integer primary key.
//   - Name: unique, indexed service name.
//   - CategoryID: optional grouping reference managed externally.
//   - Active: whether the service is selectable for new uploads/queries.
type Service struct {
	ID          int            `json:"id"          gorm:"primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(120);not null;uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	CategoryID  *int           `json:"category_id,omitempty"`
	Active      bool           `json:"active"      gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Document represents one uploaded source file (a PDF manual). Its chunks
// are only meaningful while the status is PROCESSING or READY.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: human-readable title supplied at upload time.
//   - ServiceID: owning service; part of the retrieval hard filter.
//   - StorageKey: object-store key of the raw file.
//   - ContentHash: MD5 of the uploaded bytes, used for duplicate detection.
//   - Status: ingestion lifecycle state (see DocumentStatus).
//   - CreatedAt: upload timestamp.
//   - DeletedAt: soft deletion marker; soft-deleted documents are excluded
//     from retrieval.
type Document struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string         `json:"title"        gorm:"type:varchar(255);not null"`
	ServiceID   int            `json:"service_id"   gorm:"not null;index:idx_service_docs"`
	StorageKey  string         `json:"storage_key"  gorm:"type:varchar(512);not null"`
	ContentHash string         `json:"content_hash" gorm:"type:char(32);index"`
	Status      DocumentStatus `json:"status"       gorm:"type:varchar(16);not null;default:'PENDING';check:status IN ('PENDING','PROCESSING','READY','ERROR')"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	// Service is the owning service. Kept as an association so queries can
	// join for analytics and hard-filter enforcement.
	Service Service `json:"-" gorm:"foreignKey:ServiceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// DocumentChunk is one retrievable unit of a document's extracted text,
// paired with its embedding vector. Chunks are created in bulk during
// ingestion and cascade-deleted with their document.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - DocumentID: foreign key to the owning document (indexed).
//   - Content: the chunk text.
//   - PageNumber: 1-based page of the source PDF the chunk came from.
//   - StartOffset: byte offset of the chunk within its page's text.
//   - Embedding: fixed-dimension float32 vector, little-endian encoded
//     (see retrieval.EncodeVector).
type DocumentChunk struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	DocumentID  string         `json:"document_id" gorm:"type:char(36);not null;index:idx_doc_chunks"`
	Content     string         `json:"content"     gorm:"type:text;not null"`
	PageNumber  int            `json:"page_number" gorm:"not null;default:1"`
	StartOffset int            `json:"start_offset"`
	Embedding   []byte         `json:"-"           gorm:"type:blob;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`

	// Document is the parent document. Chunks are cascade-deleted if their
	// document is removed.
	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DocumentChunk.
func (DocumentChunk) TableName() string { return "document_chunks" }

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single utterance in a (user, service) conversation.
// Turns are immutable appends, strictly ordered by creation time, and keyed
// by a deterministic session id derived from the (user, service) pair.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: deterministic UUIDv5 session key (indexed with CreatedAt).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: full text of the utterance.
type ConversationTurn struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index:idx_session_turns,priority:1"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_turns,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ConversationTurn.
func (ConversationTurn) TableName() string { return "conversation_turns" }

// QueryLog is an immutable audit/analytics record of one answered question.
// It is written exactly once per successful answer and never updated. Chunk
// references are by id only; deleting a chunk later does not invalidate
// historical logs.
type QueryLog struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	ServiceID       int            `json:"service_id"        gorm:"not null;index"`
	QuestionText    string         `json:"question_text"     gorm:"type:text;not null"`
	AnswerText      string         `json:"answer_text"       gorm:"type:text;not null"`
	ContextChunkIDs []string       `json:"context_chunk_ids" gorm:"serializer:json"`
	ResponseTime    float64        `json:"response_time"`
	CreatedAt       time.Time      `json:"created_at"        gorm:"index"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for QueryLog.
func (QueryLog) TableName() string { return "queries_log" }
