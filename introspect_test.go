package objcodec

import (
	"reflect"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type base struct {
	ID   int
	Name string
}

type other struct {
	Name string
}

type derived struct {
	base
	*other
	ID    string
	Extra int
}

type tagged struct {
	Zeta     int
	Alpha    int
	Hidden   int `objcodec:"-"`
	Skipped  int `objcodec:"ignore"`
	secret   string `objcodec:"include"`
	private  int
	Callback func()
	Events   chan int
	Raw      *func()
}

type ignoredBase struct {
	base `objcodec:"ignore"`
	Own  int
}

type Panel struct {
	Title  string
	width  int
	height int
}

func (p *Panel) Width() int     { return p.width }
func (p *Panel) SetWidth(v int) { p.width = v }

// not a property: setter has no matching getter.
func (p *Panel) SetMargin(int) {}

// not a property: getter takes an argument.
func (p *Panel) Scale(f float64) float64 { return f }
func (p *Panel) SetScale(float64)         {}

func names[T interface{ FieldInfo | PropertyInfo | MemberInfo }](items []T) []string {
	return lo.Map(items, func(item T, _ int) string {
		switch v := any(item).(type) {
		case FieldInfo:
			return v.Name
		case PropertyInfo:
			return v.Name
		case MemberInfo:
			return v.Name
		}
		return ""
	})
}

type IntrospectTestSuite struct {
	suite.Suite
	reg *Registry
}

func (s *IntrospectTestSuite) SetupTest() {
	s.reg = NewRegistry()
}

func (s *IntrospectTestSuite) TestFieldOrderAndTags() {
	fields := s.reg.SelectFields(reflect.TypeFor[tagged]())
	s.Assert().Equal([]string{"Alpha", "Zeta", "secret"}, names(fields))
	s.Assert().Equal(reflect.TypeFor[tagged](), fields[0].Owner)
}

func (s *IntrospectTestSuite) TestEmbedding() {
	fields := s.reg.SelectFields(reflect.TypeFor[derived]())
	s.Require().Equal([]string{"Extra", "ID"}, names(fields), "ambiguous Name is dropped, ID is shadowed")
	s.Assert().Equal(reflect.TypeFor[string](), fields[1].Type)

	s.Assert().Equal([]string{"Own"}, names(s.reg.SelectFields(reflect.TypeFor[ignoredBase]())))
}

func (s *IntrospectTestSuite) TestPromotedFieldsRoundTrip() {
	type wrapper struct {
		base
		Note string
	}
	in := wrapper{base: base{ID: 4, Name: "n"}, Note: "x"}
	s.Assert().Equal([]string{"ID", "Name", "Note"}, names(s.reg.Members(reflect.TypeFor[wrapper]())))

	for _, c := range []Codec{NewJSON(WithRegistry(s.reg)), NewBinary(WithRegistry(s.reg))} {
		var out wrapper
		s.Require().NoError(c.Unmarshal(mustMarshal(s.T(), c, in), &out))
		s.Assert().Equal(in, out)
	}
}

func (s *IntrospectTestSuite) TestNilEmbeddedPointer() {
	type withPtr struct {
		*other
		Own int
	}
	s.Require().Equal([]string{"Name", "Own"}, names(s.reg.Members(reflect.TypeFor[withPtr]())))

	for _, c := range []Codec{NewJSON(WithRegistry(s.reg)), NewBinary(WithRegistry(s.reg))} {
		var out withPtr
		s.Require().NoError(c.Unmarshal(mustMarshal(s.T(), c, &withPtr{Own: 1}), &out))
		s.Assert().Nil(out.other)
		s.Assert().Equal(1, out.Own)

		out = withPtr{}
		s.Require().NoError(c.Unmarshal(mustMarshal(s.T(), c, &withPtr{other: &other{Name: "n"}, Own: 2}), &out))
		s.Require().NotNil(out.other)
		s.Assert().Equal("n", out.Name)
	}
}

func (s *IntrospectTestSuite) TestPrivateIncludedField() {
	in := &tagged{Alpha: 1, Zeta: 2, secret: "s", private: 9}
	for _, c := range []Codec{NewJSON(WithRegistry(s.reg)), NewBinary(WithRegistry(s.reg))} {
		var out tagged
		s.Require().NoError(c.Unmarshal(mustMarshal(s.T(), c, in), &out))
		s.Assert().Equal("s", out.secret)
		s.Assert().Zero(out.private)
		s.Assert().Equal(2, out.Zeta)
	}
}

func (s *IntrospectTestSuite) TestMethodProperties() {
	props := s.reg.SelectProperties(reflect.TypeFor[Panel]())
	s.Require().Equal([]string{"Width"}, names(props))
	s.Assert().Equal(reflect.TypeFor[int](), props[0].Type)
	s.Assert().Equal([]string{"Title", "Width"}, names(s.reg.Members(reflect.TypeFor[Panel]())))
}

func (s *IntrospectTestSuite) TestRegisteredProperty() {
	t := reflect.TypeFor[Panel]()
	s.Require().Equal([]string{"Title", "Width"}, names(s.reg.Members(t)))

	RegisterPropertyIn(s.reg, "Height",
		func(p *Panel) int { return p.height },
		func(p *Panel, v int) { p.height = v })
	// a registered property loses to a field of the same name.
	RegisterPropertyIn(s.reg, "Title",
		func(p *Panel) string { return "shadowed" },
		func(p *Panel, v string) {})

	s.Assert().Equal([]string{"Title", "Height", "Width"}, names(s.reg.Members(t)))

	in := &Panel{Title: "t", width: 3, height: 4}
	for _, c := range []Codec{NewJSON(WithRegistry(s.reg)), NewBinary(WithRegistry(s.reg))} {
		var out Panel
		s.Require().NoError(c.Unmarshal(mustMarshal(s.T(), c, in), &out))
		s.Assert().Equal(*in, out)
	}

	s.Assert().Panics(func() {
		RegisterPropertyIn(s.reg, "$id", func(p *Panel) int { return 0 }, func(p *Panel, v int) {})
	})
}

func (s *IntrospectTestSuite) TestMemberGet() {
	p := Panel{Title: "t", width: 8}
	sv := reflect.ValueOf(&p).Elem()
	for _, m := range s.reg.Members(reflect.TypeFor[Panel]()) {
		v, ok := m.Get(sv)
		s.Require().True(ok)
		switch m.Name {
		case "Title":
			s.Assert().Equal("t", v.Interface())
			s.Assert().False(m.Property)
		case "Width":
			s.Assert().Equal(8, v.Interface())
			s.Assert().True(m.Property)
		}
	}
}

func (s *IntrospectTestSuite) TestDeterministicAndConcurrent() {
	want := names(s.reg.Members(reflect.TypeFor[tagged]()))
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := NewRegistry()
			assert.Equal(s.T(), want, names(reg.Members(reflect.TypeFor[tagged]())))
			assert.Equal(s.T(), want, names(s.reg.Members(reflect.TypeFor[tagged]())))
		}()
	}
	wg.Wait()
}

func (s *IntrospectTestSuite) TestNonStructs() {
	s.Assert().Nil(s.reg.Members(reflect.TypeFor[int]()))
	s.Assert().Nil(s.reg.SelectFields(reflect.TypeFor[[]Bag]()))
	s.Assert().Equal(names(s.reg.Members(reflect.TypeFor[Bag]())), names(s.reg.Members(reflect.TypeFor[**Bag]())))
}

func TestIntrospect(t *testing.T) {
	suite.Run(t, new(IntrospectTestSuite))
}

func TestDefaultRegistry(t *testing.T) {
	require.Same(t, defaultRegistry, DefaultRegistry())
	assert.Equal(t, []string{"Count", "Tags"}, names(SelectFields(reflect.TypeFor[Bag]())))
	assert.Empty(t, SelectProperties(reflect.TypeFor[Bag]()))

	Register((*Square)(nil))
	typ, ok := DefaultRegistry().Lookup(TypeNameOf(reflect.TypeFor[Square]()))
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[*Square](), typ)

	RegisterFactory(func() *Settings { return &Settings{Level: 1} })
	assert.True(t, DefaultRegistry().CanConstruct(reflect.TypeFor[Settings]()))
	assert.False(t, DefaultRegistry().CanConstruct(reflect.TypeFor[Shape]()))
}
