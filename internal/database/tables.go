package database

import (
	"fmt"

	"github.com/rajindersingh041/sidebar-qa/internal/query"
)

// DefaultTable is the event table of the DesktopWebUIActionsTracking schema.
const DefaultTable = "desktopwebuiactionstracking"

const clickhouseEventsSQL = `
CREATE TABLE IF NOT EXISTS %s (
    dt          DateTime('UTC'),
    action      String,
    wiki        String,
    name        String,
    skinversion Int32,
    isanon      Bool
) ENGINE = MergeTree()
ORDER BY (wiki, dt);
`

const postgresEventsSQL = `
CREATE TABLE IF NOT EXISTS %s (
    dt          TIMESTAMPTZ NOT NULL,
    action      TEXT NOT NULL,
    wiki        TEXT NOT NULL,
    name        TEXT NOT NULL,
    skinversion INTEGER NOT NULL,
    isanon      BOOLEAN NOT NULL
);
`

// dt is stored as sortable "YYYY-MM-DD HH:MM:SS" UTC text.
const sqliteEventsSQL = `
CREATE TABLE IF NOT EXISTS %s (
    dt          TEXT NOT NULL,
    action      TEXT NOT NULL,
    wiki        TEXT NOT NULL,
    name        TEXT NOT NULL,
    skinversion INTEGER NOT NULL,
    isanon      INTEGER NOT NULL
);
`

func createEventsSQL(d query.Dialect, table string) string {
	quoted := query.QuoteTable(d, table)
	switch d.Name() {
	case query.DriverClickHouse:
		return fmt.Sprintf(clickhouseEventsSQL, quoted)
	case query.DriverPostgres:
		return fmt.Sprintf(postgresEventsSQL, quoted)
	}
	return fmt.Sprintf(sqliteEventsSQL, quoted)
}
