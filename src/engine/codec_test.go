package engine

import (
	"testing"
	"time"

	"github.com/stake-plus/govcurator/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUnpersistedReferenceFails(t *testing.T) {
	eng := newTestEngine(t)

	author := NewRecord("Author", Fields{"handle": "ada"})
	_, err := eng.Codec().Encode(author)
	assert.ErrorIs(t, err, ErrUnpersistedReference)

	post := NewRecord("Post", Fields{"author": author})
	assert.ErrorIs(t, eng.Save(post), ErrUnpersistedReference)
	assert.False(t, post.HasID())
}

func TestReferenceRoundTripThroughResolve(t *testing.T) {
	eng := newTestEngine(t)

	author := NewRecord("Author", Fields{"handle": "ada", "score": 3})
	require.NoError(t, eng.Save(author))

	post := NewRecord("Post", Fields{"author": author})
	require.NoError(t, eng.Save(post))

	loaded, err := eng.Get("Post", post.ID)
	require.NoError(t, err)

	ref, ok := loaded.Get("author").(Ref)
	require.True(t, ok, "decoding yields an unresolved reference")
	assert.Equal(t, Ref{Kind: "Author", ID: author.ID}, ref)

	target, err := eng.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, "ada", target.Text("handle"))
	assert.Equal(t, int64(3), target.Int("score"))
}

func TestEncodedForm(t *testing.T) {
	eng := newTestEngine(t)
	at := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	doc, err := eng.Codec().EncodeFields(Fields{
		"author": Ref{Kind: "Author", ID: 4},
		"saved":  &Record{Kind: "Author", ID: 5},
		"when":   at,
		"nested": []any{map[string]any{"who": Ref{Kind: "Author", ID: 6}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "{TinyLazy}Author/4", doc["author"])
	assert.Equal(t, "{TinyModel}Author/5", doc["saved"])
	assert.Equal(t, "{TinyDate}2021-06-01T00:00:00Z", doc["when"])
	assert.Equal(t, "{TinyLazy}Author/6", doc["nested"].([]any)[0].(map[string]any)["who"])
}

func TestDecodeUnregisteredKindFails(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Codec().DecodeDocument(store.Document{"x": "{TinyModel}Ghost/1"})
	assert.ErrorIs(t, err, ErrUnregisteredKind)
}

func TestDecodeLeavesUnknownTagsAlone(t *testing.T) {
	eng := newTestEngine(t)

	fields, err := eng.Codec().DecodeDocument(store.Document{"x": "{Other}payload", "y": "{not closed"})
	require.NoError(t, err)
	assert.Equal(t, "{Other}payload", fields["x"])
	assert.Equal(t, "{not closed", fields["y"])
}

type upperSerializer struct{}

type shout string

func (upperSerializer) Tag() string                  { return "Shout" }
func (upperSerializer) Encode(v any) (string, error) { return string(v.(shout)), nil }
func (upperSerializer) Decode(p string) (any, error) { return shout(p), nil }

func (upperSerializer) Encodes(v any) bool {
	_, ok := v.(shout)
	return ok
}

func TestCustomSerializer(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Codec().Register(upperSerializer{}))
	assert.Error(t, eng.Codec().Register(upperSerializer{}))

	enc, err := eng.Codec().Encode(shout("hey"))
	require.NoError(t, err)
	assert.Equal(t, "{Shout}hey", enc)

	dec, err := eng.Codec().Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, shout("hey"), dec)
}

func TestResolveDeletedTargetDangles(t *testing.T) {
	eng := newTestEngine(t)

	author := NewRecord("Author", Fields{"handle": "ada"})
	require.NoError(t, eng.Save(author))
	ref, err := author.Ref()
	require.NoError(t, err)

	require.NoError(t, eng.Delete(author))
	_, err = eng.Resolve(ref)
	assert.ErrorIs(t, err, ErrDanglingReference)

	_, err = eng.Resolve(Ref{Kind: "Ghost", ID: 1})
	assert.ErrorIs(t, err, ErrDanglingReference)
	assert.ErrorIs(t, err, ErrUnregisteredKind)
}

func TestResolveDeepNestedContainers(t *testing.T) {
	eng := newTestEngine(t)

	ada := NewRecord("Author", Fields{"handle": "ada"})
	require.NoError(t, eng.Save(ada))
	bob := NewRecord("Author", Fields{"handle": "bob"})
	require.NoError(t, eng.Save(bob))

	post := NewRecord("Post", Fields{
		"author":  ada,
		"related": []any{bob, "plain"},
		"extra":   map[string]any{"editor": bob},
	})
	require.NoError(t, eng.Save(post))

	loaded, err := eng.Get("Post", post.ID)
	require.NoError(t, err)
	require.NoError(t, eng.ResolveDeep(loaded))

	assert.Equal(t, "ada", loaded.Get("author").(*Record).Text("handle"))
	related := loaded.List("related")
	assert.Equal(t, "bob", related[0].(*Record).Text("handle"))
	assert.Equal(t, "plain", related[1])
	editor := loaded.Map("extra")["editor"].(*Record)
	// The same target is loaded once and shared.
	assert.Same(t, related[0], editor)
}

func TestResolveDeepTerminatesOnCycles(t *testing.T) {
	eng := newTestEngine(t)

	first := NewRecord("Post", nil)
	require.NoError(t, eng.Save(first))
	second := NewRecord("Post", Fields{"related": []any{first}})
	require.NoError(t, eng.Save(second))
	first.Set("related", []any{second})
	require.NoError(t, eng.Save(first))

	loaded, err := eng.Get("Post", first.ID)
	require.NoError(t, err)
	require.NoError(t, eng.ResolveDeep(loaded))

	back := loaded.List("related")[0].(*Record)
	assert.Equal(t, second.ID, back.ID)
	assert.Same(t, loaded, back.List("related")[0])
}

func TestResolveDeepDanglingFails(t *testing.T) {
	eng := newTestEngine(t)

	ada := NewRecord("Author", Fields{"handle": "ada"})
	require.NoError(t, eng.Save(ada))
	post := NewRecord("Post", Fields{"extra": map[string]any{"a": ada}})
	require.NoError(t, eng.Save(post))
	require.NoError(t, eng.Delete(ada))

	loaded, err := eng.Get("Post", post.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.ResolveDeep(loaded), ErrDanglingReference)
}

func TestBraceStringsRoundTrip(t *testing.T) {
	eng := newTestEngine(t)

	for _, handle := range []string{"{TinyDate}tuesday", "{TinyLazy}Author/1", "{TinyStr}x", "{", "{}", "{not closed"} {
		rec := NewRecord("Author", Fields{"handle": handle})
		require.NoError(t, eng.Save(rec), handle)

		got, err := eng.Get("Author", rec.ID)
		require.NoError(t, err, handle)
		assert.Equal(t, handle, got.Text("handle"))
	}

	found, err := eng.Search("Author", Where("handle", "{TinyDate}tuesday"))
	require.NoError(t, err)
	require.Len(t, found, 1)

	enc, err := eng.Codec().Encode("{TinyDate}tuesday")
	require.NoError(t, err)
	assert.Equal(t, "{TinyStr}{TinyDate}tuesday", enc)

	plain, err := eng.Codec().Encode("tuesday")
	require.NoError(t, err)
	assert.Equal(t, "tuesday", plain)
}
