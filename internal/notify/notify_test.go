package notify

import (
	"context"
	"errors"
	"testing"
)

type recorder struct {
	got []string
	err error
}

func (r *recorder) Publish(_ context.Context, subject string, payload []byte) error {
	r.got = append(r.got, subject+"="+string(payload))
	return r.err
}

func TestMultiPublishesToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	if err := (Multi{a, b}).Publish(context.Background(), "cityflow:accidents", []byte("A1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for i, r := range []*recorder{a, b} {
		if len(r.got) != 1 || r.got[0] != "cityflow:accidents=A1" {
			t.Errorf("publisher %d got %v", i, r.got)
		}
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	e1, e2 := errors.New("redis down"), errors.New("nats down")
	ok := &recorder{}
	err := (Multi{&recorder{err: e1}, ok, &recorder{err: e2}}).Publish(context.Background(), "s", nil)
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Errorf("err = %v, want both failures", err)
	}
	if len(ok.got) != 1 {
		t.Error("a failing publisher should not stop the others")
	}
}

func TestMultiEmpty(t *testing.T) {
	if err := (Multi{}).Publish(context.Background(), "s", nil); err != nil {
		t.Errorf("err = %v", err)
	}
}
