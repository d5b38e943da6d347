package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/navigation"
)

func mustParse(t *testing.T, raw string) navigation.Location {
	t.Helper()
	loc, err := navigation.ParseLocation(raw)
	require.NoError(t, err)
	return loc
}

func TestDetectTicket(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Ticket
		ok   bool
	}{
		{
			name: "query carrier",
			raw:  "/?type=recovery&access_token=AAA&refresh_token=BBB",
			want: Ticket{AccessToken: "AAA", RefreshToken: "BBB"},
			ok:   true,
		},
		{
			name: "fragment carrier",
			raw:  "/#type=recovery&access_token=AAA&refresh_token=BBB",
			want: Ticket{AccessToken: "AAA", RefreshToken: "BBB"},
			ok:   true,
		},
		{
			name: "split across carriers",
			raw:  "/?type=recovery&access_token=AAA#refresh_token=BBB",
			want: Ticket{AccessToken: "AAA", RefreshToken: "BBB"},
			ok:   true,
		},
		{
			name: "query outranks fragment",
			raw:  "/?type=recovery&access_token=QUERY&refresh_token=R#access_token=FRAG",
			want: Ticket{AccessToken: "QUERY", RefreshToken: "R"},
			ok:   true,
		},
		{
			name: "wrong type",
			raw:  "/?type=magiclink&access_token=AAA&refresh_token=BBB",
		},
		{
			name: "missing refresh token",
			raw:  "/?type=recovery&access_token=AAA",
		},
		{
			name: "missing access token",
			raw:  "/?type=recovery&refresh_token=BBB",
		},
		{
			name: "no parameters at all",
			raw:  "/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectTicket(mustParse(t, tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecoveryHandler_Detect(t *testing.T) {
	fake := newFakeIdentity()
	fake.exchangeResult = verifiedSession("u1")
	nav := navigation.NewMemory(mustParse(t, "/?type=recovery&access_token=AAA&refresh_token=BBB"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	require.True(t, h.Detect(context.Background()))
	assert.True(t, h.ShowingForm())
	assert.Equal(t, 1, fake.exchanges())

	// The ticket parameters are stripped so a reload cannot resubmit them.
	loc := nav.Current()
	assert.Equal(t, "/login", loc.Path)
	assert.Empty(t, loc.Query.Get(paramType))
	assert.Empty(t, loc.Query.Get(paramAccessToken))
	assert.Empty(t, loc.Query.Get(paramRefreshToken))
}

func TestRecoveryHandler_DetectIsOneShot(t *testing.T) {
	fake := newFakeIdentity()
	fake.exchangeResult = verifiedSession("u1")
	nav := navigation.NewMemory(mustParse(t, "/?type=recovery&access_token=AAA&refresh_token=BBB"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	require.True(t, h.Detect(context.Background()))
	require.True(t, h.Detect(context.Background()))
	require.True(t, h.Detect(context.Background()))

	assert.Equal(t, 1, fake.exchanges(), "the ticket is exchanged exactly once")
}

func TestRecoveryHandler_DetectExchangeFailure(t *testing.T) {
	fake := newFakeIdentity()
	fake.exchangeErr = &identity.Error{Kind: identity.KindExchangeRejected, Message: "token expired"}
	nav := navigation.NewMemory(mustParse(t, "/?type=recovery&access_token=AAA&refresh_token=BBB"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	assert.False(t, h.Detect(context.Background()))
	assert.False(t, h.ShowingForm())

	// The URL keeps its parameters; a later retry is possible.
	assert.Equal(t, "recovery", nav.Current().Param(paramType))
}

func TestRecoveryHandler_DetectWithoutTicket(t *testing.T) {
	fake := newFakeIdentity()
	nav := navigation.NewMemory(mustParse(t, "/login"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	assert.False(t, h.Detect(context.Background()))
	assert.Zero(t, fake.exchanges())
}

func TestRecoveryHandler_Reset(t *testing.T) {
	fake := newFakeIdentity()
	fake.exchangeResult = verifiedSession("u1")
	nav := navigation.NewMemory(mustParse(t, "/?type=recovery&access_token=AAA&refresh_token=BBB"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	require.True(t, h.Detect(context.Background()))
	h.Reset()
	assert.False(t, h.ShowingForm())
}

func TestRecoveryHandler_StripLeavesUnrelatedParams(t *testing.T) {
	fake := newFakeIdentity()
	fake.exchangeResult = verifiedSession("u1")
	nav := navigation.NewMemory(mustParse(t, "/?type=recovery&access_token=AAA&refresh_token=BBB&lang=de"))
	h := NewRecoveryHandler(fake, nav, testLogger())

	require.True(t, h.Detect(context.Background()))
	assert.Equal(t, "de", nav.Current().Query.Get("lang"))
}
