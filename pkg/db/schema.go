package db

import (
	"fmt"
	"log"
)

const (
	DirectMessagesTable       = "direct_messages"
	GroupMessagesTable        = "group_messages"
	UserConversationsTable    = "user_conversations"
	ConversationCountersTable = "conversation_counters"
)

const messageTable = `CREATE TABLE IF NOT EXISTS %s (
	conversation_id text,
	sequence_key text,
	message_id text,
	sender_id text,
	receiver_id text,
	content text,
	media_ref text,
	reply_to_id text,
	status text,
	liked boolean,
	created_at timestamp,
	PRIMARY KEY (conversation_id, sequence_key)
) WITH CLUSTERING ORDER BY (sequence_key ASC)`

// CreateKeyspace connects to the system keyspace and creates keyspace. Schema
// management belongs to migration tooling; this covers development clusters.
func CreateKeyspace(hosts []string, keyspace string) error {
	sys, err := NewSession(hosts, "system")
	if err != nil {
		return fmt.Errorf("connect system keyspace: %w", err)
	}
	defer sys.Close()

	q := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace)
	if err := sys.Query(q).Exec(); err != nil {
		return fmt.Errorf("create keyspace %s: %w", keyspace, err)
	}
	return nil
}

// EnsureSchema creates the message and conversation index tables.
func EnsureSchema(s *Session) error {
	stmts := []string{
		fmt.Sprintf(messageTable, DirectMessagesTable),
		fmt.Sprintf(messageTable, GroupMessagesTable),
		`CREATE INDEX IF NOT EXISTS ON ` + DirectMessagesTable + ` (message_id)`,
		`CREATE INDEX IF NOT EXISTS ON ` + GroupMessagesTable + ` (message_id)`,
		`CREATE TABLE IF NOT EXISTS ` + UserConversationsTable + ` (
			user_id text,
			other_user_id text,
			conversation_id text,
			last_updated timestamp,
			PRIMARY KEY (user_id, other_user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + ConversationCountersTable + ` (
			user_id text,
			conversation_id text,
			unread_count counter,
			PRIMARY KEY (user_id, conversation_id)
		)`,
	}
	for _, stmt := range stmts {
		if err := s.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	log.Println("Schema is up to date")
	return nil
}
