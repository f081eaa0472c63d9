package bus

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tzrikka/parley/pkg/events"
)

func TestBusParse(t *testing.T) {
	var got []string
	record := func(name string, err error) func(context.Context, events.Event) error {
		return func(_ context.Context, e events.Event) error {
			got = append(got, name+":"+e.Kind())
			return err
		}
	}

	b := New()
	b.Register(Skill{Name: "all", Run: record("all", nil)})
	b.Register(Skill{Name: "messages", Match: MatchKinds("message"), Run: record("messages", errors.New("error"))})
	b.Register(Skill{Name: "reactions", Match: MatchKinds("reaction", "pin_message"), Run: record("reactions", nil)})
	b.Register(Skill{Name: "no_run"})

	b.Parse(t.Context(), &events.Message{Text: "hi"})
	b.Parse(t.Context(), &events.Reaction{Emoji: "+1"})
	b.Parse(t.Context(), nil)

	want := []string{"all:message", "messages:message", "all:reaction", "reactions:reaction"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() ran %v, want %v", got, want)
	}
}

func TestMatchKinds(t *testing.T) {
	tests := []struct {
		name  string
		kinds []string
		e     events.Event
		want  bool
	}{
		{
			name: "no_kinds",
			e:    &events.Message{},
		},
		{
			name:  "match",
			kinds: []string{"join_room", "message"},
			e:     &events.Message{},
			want:  true,
		},
		{
			name:  "mismatch",
			kinds: []string{"message"},
			e:     &events.EditedMessage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchKinds(tt.kinds...)(tt.e); got != tt.want {
				t.Errorf("MatchKinds() = %v, want %v", got, tt.want)
			}
		})
	}
}
