package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open はreportifyが使用するPostgreSQL接続を開く。
// プロフィール・レポート・履歴・決済イベントの全リポジトリが
// この単一の*sql.DBを共有する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
