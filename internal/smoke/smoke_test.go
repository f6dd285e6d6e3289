package smoke

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorekeeper/internal/adapters/http/api"
	"github.com/okian/scorekeeper/internal/adapters/repository"
	service "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/client"
	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(opts ...service.Option) (*httptest.Server, func()) {
	svc := service.New(repository.NewMemoryStore(), opts...)
	So(svc.Start(context.Background()), ShouldBeNil)

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

func TestRun(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		ctx := context.Background()
		srv, closeFn := newServer()
		defer closeFn()
		c := client.New(srv.URL)

		Convey("When the scenario runs", func() {
			report, err := Run(ctx, c, Config{})

			Convey("Then every step passes and the contract is instantiated", func() {
				So(err, ShouldBeNil)
				So(report.Instantiated, ShouldBeTrue)
				So(report.Steps, ShouldEqual, 9)
				So(report.Addresses, ShouldHaveLength, 2)
			})

			Convey("Then a second run reuses the owner and fresh addresses", func() {
				again, err := Run(ctx, c, Config{})
				So(err, ShouldBeNil)
				So(again.Instantiated, ShouldBeFalse)
				So(again.Addresses[0], ShouldNotEqual, report.Addresses[0])
			})

			Convey("Then a run expecting another owner fails", func() {
				_, err := Run(ctx, c, Config{Owner: "someone"})
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
				So(err.Error(), ShouldStartWith, "owner:")
			})
		})
	})

	Convey("Given a server that requires an address prefix", t, func() {
		ctx := context.Background()
		srv, closeFn := newServer(service.WithValidator(address.NewDefault(address.WithPrefix("score_"))))
		defer closeFn()
		c := client.New(srv.URL)

		Convey("When the scenario uses that prefix for every identity", func() {
			report, err := Run(ctx, c, Config{Owner: "score_owner", Intruder: "score_intruder", AddressPrefix: "score_"})

			Convey("Then it passes", func() {
				So(err, ShouldBeNil)
				for _, a := range report.Addresses {
					So(strings.HasPrefix(a, "score_"), ShouldBeTrue)
				}
			})
		})

		Convey("When the scenario omits the prefix", func() {
			_, err := Run(ctx, c, Config{})

			Convey("Then instantiate is rejected", func() {
				So(err, ShouldNotBeNil)
				So(client.Code(err), ShouldEqual, "invalid_address")
			})
		})
	})
}
