package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorekeeper/internal/adapters/http/api"
	"github.com/okian/scorekeeper/internal/adapters/repository"
	service "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/client"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer() (*httptest.Server, func()) {
	svc := service.New(repository.NewMemoryStore())
	convey.So(svc.Start(context.Background()), convey.ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	}
}

// execute runs scorectl with args against url and returns stdout.
func execute(url string, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--url", url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScorectl(t *testing.T) {
	convey.Convey("Given a running server", t, func() {
		srv, closeFn := newServer()
		defer closeFn()

		convey.Convey("When the owner is instantiated without an explicit sender", func() {
			out, err := execute(srv.URL, "instantiate", "creator")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"instantiated"`)

			convey.Convey("Then set-score and the reads round-trip", func() {
				_, err := execute(srv.URL, "--sender", "creator", "set-score", "address_1", "30", "--token", "Mirror")
				convey.So(err, convey.ShouldBeNil)

				out, err := execute(srv.URL, "score", "address_1", "--token", "Mirror")
				convey.So(err, convey.ShouldBeNil)
				var score model.ScoreResponse
				convey.So(json.Unmarshal([]byte(out), &score), convey.ShouldBeNil)
				convey.So(score.Score, convey.ShouldEqual, int32(30))

				out, err = execute(srv.URL, "scores", "address_1")
				convey.So(err, convey.ShouldBeNil)
				var all model.ScoresResponse
				convey.So(json.Unmarshal([]byte(out), &all), convey.ShouldBeNil)
				convey.So(all.Scores, convey.ShouldResemble, model.ScoreRecord{"Mirror": 30})

				out, err = execute(srv.URL, "owner")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"creator"`)
			})

			convey.Convey("Then a replayed --tx-id is reported as duplicate", func() {
				_, err := execute(srv.URL, "--sender", "creator", "set-score", "address_1", "1", "--tx-id", "tx-7")
				convey.So(err, convey.ShouldBeNil)
				out, err := execute(srv.URL, "--sender", "creator", "set-score", "address_1", "2", "--tx-id", "tx-7")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"duplicate": true`)
			})

			convey.Convey("Then a non-owner write fails with the API code", func() {
				_, err := execute(srv.URL, "--sender", "mallory", "set-score", "address_1", "5")
				convey.So(client.Code(err), convey.ShouldEqual, "unauthorized")
			})

			convey.Convey("Then a score outside int32 is rejected locally", func() {
				_, err := execute(srv.URL, "--sender", "creator", "set-score", "address_1", "2147483648")
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(client.Code(err), convey.ShouldEqual, "")
			})
		})

		convey.Convey("When the smoke command runs", func() {
			out, err := execute(srv.URL, "smoke")

			convey.Convey("Then it reports every step", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"steps": 9`)
				convey.So(out, convey.ShouldContainSubstring, `"instantiated": true`)
			})
		})

		convey.Convey("When a command is missing arguments", func() {
			_, err := execute(srv.URL, "score")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
