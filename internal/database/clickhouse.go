package database

import (
	"fmt"
	"os"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// clickhouseDSN builds a native-protocol DSN from the CLICKHOUSE_* environment.
func clickhouseDSN(host string) string {
	if host == "" {
		host = os.Getenv("CLICKHOUSE_HOST")
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("clickhouse://%s:%s@%s:9000/%s?dial_timeout=%s",
		os.Getenv("CLICKHOUSE_USER"),
		os.Getenv("CLICKHOUSE_PASSWORD"),
		host,
		os.Getenv("CLICKHOUSE_DB"),
		"10s",
	)
}
