package prefs

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oy3o/objcodec"
)

type Dock struct {
	Side  string
	Width int
}

type Layout struct {
	Theme   string
	Recent  []string
	Docks   map[string]*Dock
	Focused *Dock
}

func sampleLayout() *Layout {
	left := &Dock{Side: "left", Width: 240}
	return &Layout{
		Theme:   "dark",
		Recent:  []string{"a.txt", "b.txt"},
		Docks:   map[string]*Dock{"files": left, "search": {Side: "right", Width: 300}},
		Focused: left,
	}
}

type StoreTestSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
}

func (s *StoreTestSuite) SetupTest() {
	s.store = s.open(s.T())
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) TestGetMissing() {
	_, err := s.store.Get("nothing")
	s.Assert().True(errors.Is(err, ErrNotFound))

	_, err = Load[Layout](s.store, "nothing", objcodec.NewJSON())
	s.Assert().True(errors.Is(err, ErrNotFound))
}

func (s *StoreTestSuite) TestSetOverwrites() {
	s.Require().NoError(s.store.Set("k", "one"))
	s.Require().NoError(s.store.Set("k", "two"))
	v, err := s.store.Get("k")
	s.Require().NoError(err)
	s.Assert().Equal("two", v)
}

func (s *StoreTestSuite) TestDelete() {
	s.Require().NoError(s.store.Set("k", "v"))
	s.Require().NoError(s.store.Delete("k"))
	_, err := s.store.Get("k")
	s.Assert().True(errors.Is(err, ErrNotFound))

	s.Assert().NoError(s.store.Delete("k"), "deleting a missing key is not an error")
}

func (s *StoreTestSuite) TestSaveLoad() {
	codecs := map[string]objcodec.StringCodec{
		"json":   objcodec.NewJSON(),
		"binary": objcodec.NewBinary(),
	}
	for name, c := range codecs {
		s.Run(name, func() {
			s.Require().NoError(Save(s.store, "layout."+name, c, sampleLayout()))

			out, err := Load[*Layout](s.store, "layout."+name, c)
			s.Require().NoError(err)
			s.Require().NotNil(out)
			s.Assert().Equal(sampleLayout(), out)
			s.Assert().Same(out.Docks["files"], out.Focused, "shared dock survives storage")
		})
	}
}

func (s *StoreTestSuite) TestLoadCorrupt() {
	s.Require().NoError(s.store.Set("bad", "{not json"))
	_, err := Load[Layout](s.store, "bad", objcodec.NewJSON())
	s.Assert().True(errors.Is(err, objcodec.ErrMalformed))

	s.Require().NoError(s.store.Set("bad64", "!!!"))
	_, err = Load[Layout](s.store, "bad64", objcodec.NewBinary())
	s.Assert().True(errors.Is(err, objcodec.ErrMalformed))
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestSQLiteStoreInMemory(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		st, err := OpenSQLite(":memory:")
		require.NoError(t, err)
		return st
	}})
}

func TestSQLiteStoreFile(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		st, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "prefs.db"))
		require.NoError(t, err)
		return st
	}})
}

func TestSQLiteKeysAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	st, err := OpenSQLite(path)
	require.NoError(t, err)

	require.NoError(t, st.Set("zeta", "1"))
	require.NoError(t, st.Set("alpha", "2"))
	keys, err := st.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, keys)
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()
	v, err := st.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "2", v)
}
