package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"chat_core_service/pkg/config"
	"chat_core_service/pkg/logger"
)

// StartPprof 非 production 環境時在 :6060 啟動 pprof 監控伺服器
func StartPprof() {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server on :6060")
		if err := http.ListenAndServe(":6060", nil); err != nil {
			logger.Log.Infof("pprof server failed: ", err)
		}
	}()
}
