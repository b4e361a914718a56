package storage

import (
	"context"
	"fmt"

	"livechat/backend/internal/models"
)

// ChangeChannel is the NOTIFY channel the change-feed trigger publishes on.
const ChangeChannel = "chat_changes"

// The payload mirrors models.Event: {"type","table","record"}.
// pg_notify payloads are capped at 8000 bytes; the text columns are kept
// within models.MaxTextFieldBytes by the chat service.
var changeFeedDDL = []string{
	`CREATE OR REPLACE FUNCTION notify_chat_change() RETURNS trigger AS $$
DECLARE
	rec record;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('` + ChangeChannel + `', json_build_object(
		'type', lower(TG_OP),
		'table', TG_TABLE_NAME,
		'record', row_to_json(rec)
	)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS chats_notify_change ON chats`,
	`CREATE TRIGGER chats_notify_change AFTER INSERT OR DELETE ON chats
	FOR EACH ROW EXECUTE FUNCTION notify_chat_change()`,
	`DROP TRIGGER IF EXISTS messages_notify_change ON messages`,
	`CREATE TRIGGER messages_notify_change AFTER INSERT OR DELETE ON messages
	FOR EACH ROW EXECUTE FUNCTION notify_chat_change()`,
}

// Migrate creates the two tables and installs the change-feed triggers.
// It is idempotent and runs on every start.
func (s *Service) Migrate(ctx context.Context) error {
	db := s.DB.WithContext(ctx)
	if err := db.AutoMigrate(&models.Session{}, &models.Message{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range changeFeedDDL {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install change feed: %w", err)
		}
	}
	s.logger.Info("schema ready")
	return nil
}
