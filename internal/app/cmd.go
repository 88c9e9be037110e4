package app

// Command はreportifyバイナリの起動モードを表す。
// 単一バイナリでAPIサーバー・クリーンアップワーカー・マイグレーションを使い分ける。
type Command string

const (
	// CommandServe はレポート生成APIサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れ決済イベント記録のクリーンアップワーカーとして
	// 起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマのマイグレーションのみを実行して終了することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distrolessイメージにはシェルもcurlもないため、Dockerのヘルスチェックは
	// 自分自身のバイナリで行う。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
