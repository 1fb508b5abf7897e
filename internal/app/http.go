package app

import (
	"github.com/bigbluebutton/bbb-screen-recorder/internal/server"
	log "github.com/sirupsen/logrus"
)

func serveHTTP() {
	if !cfg.HTTP.Enable {
		return
	}
	hs = server.NewHTTPServer(cfg.HTTP, sv)
	go func() {
		if err := hs.Serve(); err != nil {
			log.Errorf("http server failed: %s", err)
			shutdown(1)
		}
	}()
}
