package registry_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
	"github.com/mcoot/noughts/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	registry *registry.Registry
	logs     *testutil.LogBuffer
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	logger, logs := testutil.CaptureLogger()
	s.registry = registry.New(logger)
	s.logs = logs
}

func (s *RegistrySuite) bind(conn *testutil.FakeConn, code model.SessionCode, player model.PlayerID, sym model.Symbol) {
	s.Require().NoError(s.registry.Bind(conn.ID(), registry.Binding{
		SessionCode: code,
		PlayerID:    player,
		DisplayName: string(player),
		Symbol:      sym,
	}))
}

func (s *RegistrySuite) TestRegisterAndUnregister() {
	conn := testutil.NewFakeConn("c1")
	s.registry.Register(conn)
	s.Equal(1, s.registry.Count())

	_, bound := s.registry.Unregister("c1")
	s.False(bound)
	s.Equal(0, s.registry.Count())

	_, bound = s.registry.Unregister("c1")
	s.False(bound)
}

func (s *RegistrySuite) TestBindAndLookup() {
	conn := testutil.NewFakeConn("c1")
	s.registry.Register(conn)
	s.bind(conn, "ABC234", "alice", model.SymbolX)

	b, ok := s.registry.Lookup("c1")
	s.Require().True(ok)
	s.Equal(registry.ConnID("c1"), b.ConnID)
	s.Equal(model.SessionCode("ABC234"), b.SessionCode)
	s.Equal(model.PlayerID("alice"), b.PlayerID)
	s.Equal(model.SymbolX, b.Symbol)
}

func (s *RegistrySuite) TestBindUnknownConnection() {
	err := s.registry.Bind("ghost", registry.Binding{SessionCode: "ABC234"})
	s.ErrorIs(err, registry.ErrConnNotFound)
}

func (s *RegistrySuite) TestRebindMovesSession() {
	conn := testutil.NewFakeConn("c1")
	s.registry.Register(conn)
	s.bind(conn, "OLD222", "alice", model.SymbolX)
	s.bind(conn, "NEW222", "alice", model.SymbolX)

	s.Empty(s.registry.FindBySession("OLD222"))
	s.Equal([]registry.ConnID{"c1"}, s.registry.FindBySession("NEW222"))
}

func (s *RegistrySuite) TestUnbindKeepsConnection() {
	conn := testutil.NewFakeConn("c1")
	s.registry.Register(conn)
	s.bind(conn, "ABC234", "alice", model.SymbolX)

	s.registry.Unbind("c1")

	_, ok := s.registry.Lookup("c1")
	s.False(ok)
	s.Empty(s.registry.FindBySession("ABC234"))
	s.Equal(1, s.registry.Count())
	s.NoError(s.registry.Send("c1", model.Event{Type: model.EventMessage}))
}

func (s *RegistrySuite) TestUnregisterReturnsBinding() {
	conn := testutil.NewFakeConn("c1")
	s.registry.Register(conn)
	s.bind(conn, "ABC234", "alice", model.SymbolX)

	b, ok := s.registry.Unregister("c1")
	s.Require().True(ok)
	s.Equal(model.PlayerID("alice"), b.PlayerID)
	s.Empty(s.registry.FindBySession("ABC234"))
}

func (s *RegistrySuite) TestFindByIdentity() {
	a, b := testutil.NewFakeConn("c1"), testutil.NewFakeConn("c2")
	s.registry.Register(a)
	s.registry.Register(b)
	s.bind(a, "ABC234", "alice", model.SymbolX)
	s.bind(b, "ABC234", "bob", model.SymbolO)

	id, ok := s.registry.FindByIdentity("ABC234", "bob")
	s.Require().True(ok)
	s.Equal(registry.ConnID("c2"), id)

	_, ok = s.registry.FindByIdentity("ABC234", "carol")
	s.False(ok)
	_, ok = s.registry.FindByIdentity("OTHER2", "alice")
	s.False(ok)

	s.Equal([]registry.ConnID{"c1", "c2"}, s.registry.FindBySession("ABC234"))
}

func (s *RegistrySuite) TestSendUnknownConnection() {
	err := s.registry.Send("ghost", model.Event{Type: model.EventMessage})
	s.ErrorIs(err, registry.ErrConnNotFound)
}

func (s *RegistrySuite) TestBroadcastReachesOnlySession() {
	a, b, other := testutil.NewFakeConn("c1"), testutil.NewFakeConn("c2"), testutil.NewFakeConn("c3")
	for _, c := range []*testutil.FakeConn{a, b, other} {
		s.registry.Register(c)
	}
	s.bind(a, "ABC234", "alice", model.SymbolX)
	s.bind(b, "ABC234", "bob", model.SymbolO)
	s.bind(other, "XYZ789", "carol", model.SymbolX)

	sent := s.registry.Broadcast("ABC234", model.Event{Type: model.EventMove, Position: 4})

	s.Equal(2, sent)
	s.Equal([]model.EventType{model.EventMove}, a.Types())
	s.Equal([]model.EventType{model.EventMove}, b.Types())
	s.Empty(other.Events())
}

func (s *RegistrySuite) TestBroadcastSkipsFullRecipient() {
	full := testutil.NewBoundedFakeConn("c1", 1)
	ok := testutil.NewFakeConn("c2")
	s.registry.Register(full)
	s.registry.Register(ok)
	s.bind(full, "ABC234", "alice", model.SymbolX)
	s.bind(ok, "ABC234", "bob", model.SymbolO)

	s.registry.Broadcast("ABC234", model.Event{Type: model.EventMove})
	sent := s.registry.Broadcast("ABC234", model.Event{Type: model.EventMessage})

	s.Equal(1, sent)
	s.Len(full.Events(), 1)
	s.Equal([]model.EventType{model.EventMove, model.EventMessage}, ok.Types())
	s.Contains(s.logs.String(), "broadcast partial failure")
}

func (s *RegistrySuite) TestBroadcastSkipsClosedRecipient() {
	closed, ok := testutil.NewFakeConn("c1"), testutil.NewFakeConn("c2")
	s.registry.Register(closed)
	s.registry.Register(ok)
	s.bind(closed, "ABC234", "alice", model.SymbolX)
	s.bind(ok, "ABC234", "bob", model.SymbolO)
	closed.Close()

	sent := s.registry.Broadcast("ABC234", model.Event{Type: model.EventMessage})
	s.Equal(1, sent)
	s.Len(ok.Events(), 1)
}
