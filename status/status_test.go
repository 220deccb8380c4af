package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pb "github.com/mqy/pairchat/proto"
)

func TestAdvance(t *testing.T) {
	cases := []struct {
		cur, next pb.Status
		want      pb.Status
		changed   bool
	}{
		{pb.StatusSent, pb.StatusDelivered, pb.StatusDelivered, true},
		{pb.StatusSent, pb.StatusRead, pb.StatusRead, true},
		{pb.StatusDelivered, pb.StatusRead, pb.StatusRead, true},
		{pb.StatusRead, pb.StatusRead, pb.StatusRead, false},
		{pb.StatusRead, pb.StatusSent, pb.StatusRead, false},
		{pb.StatusRead, pb.StatusDelivered, pb.StatusRead, false},
		{pb.StatusDelivered, pb.StatusSent, pb.StatusDelivered, false},
		{pb.StatusSent, pb.Status(7), pb.StatusSent, false},
	}
	for _, c := range cases {
		got, changed := Advance(c.cur, c.next)
		assert.Equal(t, c.want, got, "%s -> %s", c.cur, c.next)
		assert.Equal(t, c.changed, changed, "%s -> %s", c.cur, c.next)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	all := []pb.Status{pb.StatusSent, pb.StatusDelivered, pb.StatusRead}
	// every sequence of three updates starting from sent
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				s := pb.StatusSent
				var reachedRead bool
				for _, next := range []pb.Status{a, b, c} {
					s, _ = Advance(s, next)
					if s == pb.StatusRead {
						reachedRead = true
					}
					if reachedRead {
						assert.Equal(t, pb.StatusRead, s)
					}
				}
			}
		}
	}
}

func TestReadIsIdempotent(t *testing.T) {
	once, _ := Advance(pb.StatusSent, pb.StatusRead)
	twice, changed := Advance(once, pb.StatusRead)
	assert.Equal(t, once, twice)
	assert.False(t, changed)
	assert.True(t, Terminal(twice))
}

func TestPending(t *testing.T) {
	p := NewPending()
	p.Put("x", pb.StatusRead)
	p.Put("x", pb.StatusDelivered)
	p.Put("y", pb.StatusDelivered)
	p.Put("z", pb.Status(42))
	assert.Equal(t, 2, p.Len())

	s, ok := p.Take("x")
	assert.True(t, ok)
	assert.Equal(t, pb.StatusRead, s)

	_, ok = p.Take("x")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())
}
