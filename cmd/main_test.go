package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/hookscore/internal/adapters/mq/queue"
	"github.com/okian/hookscore/internal/config"
	"github.com/okian/hookscore/internal/domain/signature"
	"github.com/okian/hookscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("warn")
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DatabaseURL = fmt.Sprintf("file:hookscore-main-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	cfg.WebhookSecret = "s3cr3t"
	cfg.DispatchBackend = config.DispatchNone
	return cfg
}

func TestNewDispatcher(t *testing.T) {
	convey.Convey("Given each dispatch backend", t, func() {
		cfg := config.New()

		convey.Convey("memory yields an in-memory queue", func() {
			d, err := newDispatcher(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Backend(), convey.ShouldEqual, queue.BackendMemory)
			_, ok := d.(*queue.InMemoryQueue)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("none yields the noop dispatcher", func() {
			cfg.DispatchBackend = config.DispatchNone
			d, err := newDispatcher(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Backend(), convey.ShouldEqual, queue.BackendNone)
		})

		convey.Convey("sns yields an sns dispatcher", func() {
			cfg.DispatchBackend = config.DispatchSNS
			cfg.SNSTopicARN = "arn:aws:sns:us-east-1:123456789012:hookscore"
			d, err := newDispatcher(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Backend(), convey.ShouldEqual, queue.BackendSNS)
		})

		convey.Convey("unknown backends are rejected", func() {
			cfg.DispatchBackend = "kafka"
			_, err := newDispatcher(cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a wired application over in-memory SQLite", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		a, err := build(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = a.close() }()

		srv := httptest.NewServer(a.handler)
		defer srv.Close()

		body := `{"action":"closed","pull_request":{"id":1,"number":1,"title":"fix: typo","merged":true,
"merged_at":"2024-05-01T10:00:00Z","additions":9,"user":{"login":"octocat"}},"repository":{"id":10,"full_name":"octo/r"}}`

		post := func(delivery string) *http.Response {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/github", strings.NewReader(body))
			req.Header.Set("X-GitHub-Delivery", delivery)
			req.Header.Set("X-GitHub-Event", "pull_request")
			req.Header.Set("X-Hub-Signature-256", signature.NewVerifier(cfg.WebhookSecret).Sign([]byte(body)))
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("When a signed delivery is posted and the poller runs", func() {
			resp := post("d-1")
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			a.service.ProcessPending(ctx)

			convey.Convey("Then the contributor appears on the leaderboard", func() {
				board, err := a.service.Leaderboard(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(board, convey.ShouldHaveLength, 1)
				convey.So(board[0].ContributorKey, convey.ShouldEqual, "octocat")
			})
		})

		convey.Convey("When documentation routes are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})

	convey.Convey("Given an unknown database driver", t, func() {
		cfg := testConfig()
		cfg.DatabaseDriver = "oracle"
		_, err := build(context.Background(), cfg)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given run on an ephemeral port", t, func() {
		cfg := testConfig()
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg) }()
		time.Sleep(100 * time.Millisecond)
		cancel()

		convey.Convey("Then cancellation shuts it down cleanly", func() {
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(10 * time.Second):
				t.Fatal("run did not return")
			}
		})
	})
}
