package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
)

func sweepCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.AddService("Things", "test service"))
	require.NoError(t, c.AddService("Other", "second service"))
	for _, op := range []catalog.Operation{
		{
			Service: "Things", Name: "getThing", Method: "GET",
			Path: "/accounts/{account_id}/things/{thing_id}",
			Params: []catalog.Param{
				{Name: "thing_id", In: catalog.InPath, Type: "string", Required: true},
				{Name: "limit", In: catalog.InQuery, Type: "integer"},
			},
		},
		{
			Service: "Things", Name: "createThing", Method: "POST",
			Path: "/accounts/{account_id}/things",
			Params: []catalog.Param{
				{Name: "name", In: catalog.InBody, Type: "string", Required: true},
			},
		},
		{
			Service: "Things", Name: "deleteThing", Method: "DELETE",
			Path: "/accounts/{account_id}/things/{thing_id}",
			Params: []catalog.Param{
				{Name: "thing_id", In: catalog.InPath, Type: "string", Required: true},
			},
		},
		{
			Service: "Other", Name: "ping", Method: "GET",
			Path: "/ping",
		},
	} {
		require.NoError(t, c.AddOperation(op))
	}
	return c
}

func decodeCall(t *testing.T, a Action) CallArgs {
	t.Helper()
	require.Equal(t, ToolCallOperation, a.Tool)
	var args CallArgs
	require.NoError(t, a.DecodeArgs(&args))
	return args
}

func TestSweep_Plan(t *testing.T) {
	s := NewSweep(sweepCatalog(t), WithServices("Things"), WithBogusID("bogus"))

	planned, err := s.Planned()
	require.NoError(t, err)

	type probe struct{ op, input string }
	var got []probe
	for _, a := range planned {
		args := decodeCall(t, a)
		assert.Equal(t, "Things", args.Service)
		got = append(got, probe{args.Operation, string(args.Input)})
	}

	assert.Equal(t, []probe{
		{"getThing", `{"thing_id":"bogus"}`},
		{"getThing", `{"limit":1,"thing_id":"bogus"}`},
		{"getThing", `{"limit":"not-a-number","thing_id":"bogus"}`},
		// no plausible create: it would succeed
		{"createThing", `{}`},
		{"createThing", `{"name":12345}`},
		{"deleteThing", `{"thing_id":"bogus"}`},
	}, got)
}

func TestSweep_NextThenDone(t *testing.T) {
	ctx := context.Background()
	s := NewSweep(sweepCatalog(t), WithServices("Other"))
	assert.Equal(t, "sweep", s.Name())

	a, err := s.Next(ctx, View{})
	require.NoError(t, err)
	args := decodeCall(t, a)
	assert.Equal(t, "ping", args.Operation)
	assert.JSONEq(t, `{}`, string(args.Input))

	a, err = s.Next(ctx, View{})
	require.NoError(t, err)
	assert.True(t, a.Done)
	assert.Contains(t, a.Reason, "1 probes")
}

func TestSweep_AllServices(t *testing.T) {
	planned, err := NewSweep(sweepCatalog(t)).Planned()
	require.NoError(t, err)
	assert.Len(t, planned, 7)

	first := decodeCall(t, planned[0])
	assert.Contains(t, string(first.Input), DefaultBogusID)
}

func TestSweep_UnknownService(t *testing.T) {
	s := NewSweep(sweepCatalog(t), WithServices("Nope"))
	_, err := s.Next(context.Background(), View{})
	assert.ErrorIs(t, err, catalog.ErrUnknownService)
}

func TestSweep_DefaultCatalog(t *testing.T) {
	planned, err := NewSweep(catalog.Default()).Planned()
	require.NoError(t, err)
	assert.NotEmpty(t, planned)

	for _, a := range planned {
		args := decodeCall(t, a)
		if args.Service == "KV" && args.Operation == "createNamespace" {
			assert.NotContains(t, string(args.Input), "errscout-probe")
		}
	}
}
