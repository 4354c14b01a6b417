// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeserver_test

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/fakeserver"
	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/model"
)

type updates struct {
	mu  sync.Mutex
	all []conversation.Update
}

func (u *updates) listen(up conversation.Update) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.all = append(u.all, up)
}

func (u *updates) kinds() []conversation.UpdateKind {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]conversation.UpdateKind, 0, len(u.all))
	for _, up := range u.all {
		out = append(out, up.Kind)
	}
	return out
}

func (u *updates) last() conversation.Update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.all[len(u.all)-1]
}

// conversationSpecs runs the same scenarios against any transport.
func conversationSpecs(dial func() *invoke.Dialer) {
	var (
		ctx  context.Context
		ctrl *conversation.Controller
		rec  *updates
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &updates{}
		ctrl = conversation.New(dial(), conversation.WithListener(rec.listen))
	})

	wait := func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		Expect(ctrl.Wait(waitCtx)).To(Succeed())
	}

	It("streams an echo and commits it without the wrapper", func() {
		Expect(ctrl.Submit(ctx, "hello")).To(Succeed())
		wait()

		turns := ctrl.Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[0]).To(Equal(model.NewUserTurn("hello")))
		Expect(turns[1].Role).To(Equal(model.RoleAssistant))
		Expect(turns[1].Content).To(Equal("You said: hello (history: 0 turns)"))

		Expect(rec.kinds()).To(ContainElement(conversation.UpdatePartial))
		Expect(rec.last().Kind).To(Equal(conversation.UpdateFinalized))
		Expect(ctrl.Awaiting()).To(BeFalse())
		Expect(ctrl.Typing()).To(BeEmpty())
	})

	It("sends prior turns as history", func() {
		Expect(ctrl.Submit(ctx, "one")).To(Succeed())
		wait()
		Expect(ctrl.Submit(ctx, "two")).To(Succeed())
		wait()

		turns := ctrl.Turns()
		Expect(turns).To(HaveLen(4))
		Expect(turns[3].Content).To(Equal("You said: two (history: 2 turns)"))
	})

	It("keeps unicode and reserved characters intact", func() {
		query := "a + b = ¿qué? & 100% <ok>"
		Expect(ctrl.Submit(ctx, query)).To(Succeed())
		wait()

		turns := ctrl.Turns()
		Expect(turns[0].Content).To(Equal(query))
		Expect(turns[1].Content).To(Equal("You said: " + query + " (history: 0 turns)"))
	})

	It("reports a control call without committing", func() {
		Expect(ctrl.Submit(ctx, "fn open_settings")).To(Succeed())
		wait()

		Expect(ctrl.Turns()).To(HaveLen(1))
		Expect(rec.kinds()).To(ContainElement(conversation.UpdateControlCall))
		Expect(rec.last().Kind).To(Equal(conversation.UpdateControlCall))
		Expect(rec.last().Text).To(Equal("open_settings"))
	})

	It("commits nothing for an empty reply", func() {
		Expect(ctrl.Submit(ctx, "empty")).To(Succeed())
		wait()

		Expect(ctrl.Turns()).To(HaveLen(1))
		Expect(rec.last().Kind).To(Equal(conversation.UpdateFinalized))
		Expect(rec.last().Text).To(BeEmpty())
	})

	It("drops the partial reply when the channel closes early", func() {
		Expect(ctrl.Submit(ctx, "fail")).To(Succeed())
		wait()

		Expect(ctrl.Turns()).To(HaveLen(1))
		last := rec.last()
		Expect(last.Kind).To(Equal(conversation.UpdateErrored))
		Expect(errors.Is(last.Err, invoke.ErrUnexpectedEOF) || isClosed(last.Err)).To(BeTrue(), "err = %v", last.Err)

		// A fresh submission works afterwards
		Expect(ctrl.Submit(ctx, "again")).To(Succeed())
		wait()
		Expect(ctrl.Turns()).To(HaveLen(3))
		Expect(ctrl.Turns()[2].Content).To(ContainSubstring("history: 1 turns"))
	})
}

func isClosed(err error) bool {
	var te *invoke.TransportError
	return errors.As(err, &te) && te.Type == invoke.ErrTypeClosed
}

var _ = Describe("Fake server", func() {
	Describe("over SSE", func() {
		var (
			srv *fakeserver.Server
			url string
		)

		BeforeEach(func() {
			srv = fakeserver.New(fakeserver.Config{}, zap.NewNop())
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() { _ = srv.RunWithListener(ln) }()
			url = "http://" + ln.Addr().String() + "/invoke"
		})

		AfterEach(func() {
			Expect(srv.Shutdown()).To(Succeed())
		})

		conversationSpecs(func() *invoke.Dialer {
			return invoke.NewDialer(&invoke.Config{Endpoint: url, Transport: invoke.TransportSSE}, zap.NewNop())
		})

		It("cancels a slow reply", func() {
			Expect(srv.Shutdown()).To(Succeed())
			srv = fakeserver.New(fakeserver.Config{FrameDelay: 200 * time.Millisecond}, zap.NewNop())
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() { _ = srv.RunWithListener(ln) }()

			rec := &updates{}
			dialer := invoke.NewDialer(&invoke.Config{Endpoint: "http://" + ln.Addr().String() + "/invoke"}, zap.NewNop())
			ctrl := conversation.New(dialer, conversation.WithListener(rec.listen))

			Expect(ctrl.Submit(context.Background(), "a long question")).To(Succeed())
			Eventually(ctrl.Typing, 5*time.Second).ShouldNot(BeEmpty())
			ctrl.Cancel()

			waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(ctrl.Wait(waitCtx)).To(Succeed())

			Expect(ctrl.Turns()).To(HaveLen(1))
			last := rec.last()
			Expect(last.Kind).To(Equal(conversation.UpdateErrored))
			Expect(last.Err).To(MatchError(context.Canceled))
			Expect(last.Err.Error()).To(HavePrefix("stream canceled"))
		})

		It("rejects malformed history", func() {
			dialer := invoke.NewDialer(&invoke.Config{Endpoint: url + "?chat_history=%7Bnope"}, zap.NewNop())
			_, err := dialer.Open(context.Background(), nil, "x")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("over WebSocket", func() {
		var ts *httptest.Server

		BeforeEach(func() {
			ts = httptest.NewServer(fakeserver.WebSocketHandler(fakeserver.Config{}, zap.NewNop()))
		})

		AfterEach(func() {
			ts.Close()
		})

		conversationSpecs(func() *invoke.Dialer {
			endpoint := strings.Replace(ts.URL, "http://", "ws://", 1) + "/invoke"
			return invoke.NewDialer(&invoke.Config{Endpoint: endpoint, Transport: invoke.TransportWebSocket}, zap.NewNop())
		})
	})
})
