package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcc/evalsim/internal/chat"
)

// PostgresStore keeps conversations as JSON documents partitioned by
// dataset name. There is deliberately no foreign key from
// conversations to datasets: the document store this mirrors lets a
// subcollection outlive its parent document, and rename/delete rely on
// that.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			dataset TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			date_of_report TEXT NOT NULL DEFAULT '',
			content JSONB NOT NULL DEFAULT '[]',
			results JSONB NOT NULL DEFAULT '[]',
			PRIMARY KEY (dataset, conversation_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_dataset ON conversations (dataset);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListDatasetNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0, 8)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dataset name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) CreateDataset(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name cannot be empty", ErrInvalid)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

// DeleteDataset removes the conversations first, then the metadata
// row. Two statements, no transaction: a crash in between leaves an
// empty dataset document, matching the documented contract.
func (s *PostgresStore) DeleteDataset(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name cannot be empty", ErrInvalid)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE dataset=$1`, name); err != nil {
		return fmt.Errorf("delete dataset conversations: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE name=$1`, name); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return nil
}

// RenameDataset copies every conversation to the new partition,
// deletes the old one, then writes the new metadata row. Not atomic.
func (s *PostgresStore) RenameDataset(ctx context.Context, oldName, newName string) error {
	if oldName == "" || newName == "" {
		return fmt.Errorf("%w: both old and new dataset names are required", ErrInvalid)
	}
	existing, err := s.ListDatasetNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range existing {
		if name == newName {
			return fmt.Errorf("%w: dataset %q already exists", ErrInvalid, newName)
		}
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (dataset, conversation_id, username, date_of_report, content, results)
		 SELECT $2, conversation_id, username, date_of_report, content, results
		   FROM conversations WHERE dataset=$1`,
		oldName, newName); err != nil {
		return fmt.Errorf("copy conversations to %q: %w", newName, err)
	}
	if err := s.DeleteDataset(ctx, oldName); err != nil {
		return err
	}
	if err := s.CreateDataset(ctx, newName); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) LoadConversations(ctx context.Context, dataset string) ([]chat.Conversation, error) {
	if dataset == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, username, date_of_report, content, results
		   FROM conversations WHERE dataset=$1`,
		dataset)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()

	convos := make([]chat.Conversation, 0, 16)
	for rows.Next() {
		convo, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convos = append(convos, convo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	sortByReportDate(convos)
	return convos, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, dataset, conversationID string) (chat.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT conversation_id, username, date_of_report, content, results
		   FROM conversations WHERE dataset=$1 AND conversation_id=$2`,
		dataset, conversationID)
	convo, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Conversation{}, fmt.Errorf("%w: conversation %q in dataset %q", ErrNotFound, conversationID, dataset)
		}
		return chat.Conversation{}, err
	}
	return convo, nil
}

func (s *PostgresStore) SaveConversation(ctx context.Context, convo chat.Conversation, dataset string) error {
	if dataset == "" {
		return fmt.Errorf("%w: dataset is required to save a conversation", ErrInvalid)
	}
	if convo.ConversationID == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalid)
	}
	content, results, err := marshalDocument(convo)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (dataset, conversation_id, username, date_of_report, content, results)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (dataset, conversation_id) DO UPDATE SET
			username=EXCLUDED.username,
			date_of_report=EXCLUDED.date_of_report,
			content=EXCLUDED.content,
			results=EXCLUDED.results`,
		dataset, convo.ConversationID, convo.Username, convo.DateOfReport, content, results); err != nil {
		return fmt.Errorf("upsert conversation %q: %w", convo.ConversationID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, dataset, conversationID string) error {
	if dataset == "" || conversationID == "" {
		return fmt.Errorf("%w: both dataset and conversation id are required", ErrInvalid)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE dataset=$1 AND conversation_id=$2`,
		dataset, conversationID); err != nil {
		return fmt.Errorf("delete conversation %q: %w", conversationID, err)
	}
	return nil
}

func (s *PostgresStore) DuplicateConversation(ctx context.Context, convo chat.Conversation, targetDataset string, clearResults bool) error {
	cp := convo.Clone()
	if clearResults {
		cp.Results = []chat.SimulationResult{}
	}
	return s.SaveConversation(ctx, cp, targetDataset)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func marshalDocument(convo chat.Conversation) (content, results []byte, err error) {
	if convo.Content == nil {
		convo.Content = []chat.Message{}
	}
	if convo.Results == nil {
		convo.Results = []chat.SimulationResult{}
	}
	content, err = json.Marshal(convo.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	results, err = json.Marshal(convo.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal results: %w", err)
	}
	return content, results, nil
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var (
		convo   chat.Conversation
		content []byte
		results []byte
	)
	if err := row.Scan(&convo.ConversationID, &convo.Username, &convo.DateOfReport, &content, &results); err != nil {
		return chat.Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal(content, &convo.Content); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode content for %q: %w", convo.ConversationID, err)
	}
	if err := json.Unmarshal(results, &convo.Results); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode results for %q: %w", convo.ConversationID, err)
	}
	return convo, nil
}
