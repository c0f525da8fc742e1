package live_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/duelkit/internal/adapters/http/live"
	"github.com/okian/duelkit/pkg/logger"
)

func dial(srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func read(conn *websocket.Conn) (live.Message, error) {
	var msg live.Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}

func TestHub(t *testing.T) {
	Convey("Given a running hub behind a test server", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := live.NewHub(live.WithAllowedOrigins([]string{"https://bot.example"}))
		go hub.Run(ctx)

		room := live.Room(5, "Season_week_1")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub.Serve(w, r, room, &live.Message{Type: live.TypeBracket, Room: room, Payload: "snapshot"})
		}))
		defer srv.Close()

		So(room, ShouldEqual, "5/Season_week_1")

		Convey("When a client subscribes", func() {
			conn, _, err := dial(srv, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			first, err := read(conn)

			Convey("Then it receives the snapshot first", func() {
				So(err, ShouldBeNil)
				So(first.Type, ShouldEqual, live.TypeBracket)
				So(first.Payload, ShouldEqual, "snapshot")
				So(hub.Subscribers(), ShouldEqual, 1)
			})

			Convey("Then it receives updates published to its room only", func() {
				So(err, ShouldBeNil)
				hub.Publish(ctx, live.Message{Type: live.TypeBracket, Room: live.Room(5, "other"), Payload: "nope"})
				hub.Publish(ctx, live.Message{Type: live.TypeCompleted, Room: room, Payload: map[string]int{"matches": 6}})

				msg, err := read(conn)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, live.TypeCompleted)
				So(msg.Room, ShouldEqual, room)
			})

			Convey("Then the hub forgets it after it disconnects", func() {
				So(err, ShouldBeNil)
				So(conn.Close(), ShouldBeNil)
				deadline := time.Now().Add(2 * time.Second)
				for hub.Subscribers() != 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(hub.Subscribers(), ShouldEqual, 0)
			})
		})

		Convey("When a foreign origin subscribes", func() {
			_, resp, err := dial(srv, http.Header{"Origin": []string{"https://evil.example"}})

			Convey("Then the upgrade is refused", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When the hub stops", func() {
			conn, _, err := dial(srv, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			_, err = read(conn)
			So(err, ShouldBeNil)

			cancel()

			Convey("Then subscribers are closed", func() {
				_, err := read(conn)
				So(err, ShouldNotBeNil)
			})
		})
	})
}
