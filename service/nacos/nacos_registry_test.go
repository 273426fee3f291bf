package nacos

import (
	"errors"
	"testing"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

type fakeNaming struct {
	registered   []vo.RegisterInstanceParam
	deregistered int
	fail         error
}

func (f *fakeNaming) RegisterInstance(p vo.RegisterInstanceParam) (bool, error) {
	if f.fail != nil {
		return false, f.fail
	}
	f.registered = append(f.registered, p)
	return true, nil
}

func (f *fakeNaming) DeregisterInstance(vo.DeregisterInstanceParam) (bool, error) {
	f.deregistered++
	return true, nil
}

func TestRegistryLifecycle(t *testing.T) {
	f := &fakeNaming{}
	r := NewRegistry(f, "session-gateway", "10.1.2.3", 3000, "")
	r.Metadata["node"] = "n-1"

	if err := r.Deregister(); err != nil || f.deregistered != 0 {
		t.Fatalf("deregister before register: %v, calls=%d", err, f.deregistered)
	}
	if err := r.Register(); err != nil {
		t.Fatal(err)
	}
	p := f.registered[0]
	if p.Ip != "10.1.2.3" || p.Port != 3000 || p.GroupName != "DEFAULT_GROUP" || !p.Ephemeral || p.Metadata["node"] != "n-1" {
		t.Fatalf("register param = %+v", p)
	}
	_ = r.Deregister()
	_ = r.Deregister()
	if f.deregistered != 1 {
		t.Fatalf("deregister calls = %d", f.deregistered)
	}
}

func TestRegistryRegisterError(t *testing.T) {
	r := NewRegistry(&fakeNaming{fail: errors.New("nacos down")}, "session-gateway", "10.1.2.3", 3000, "g")
	if err := r.Register(); err == nil {
		t.Fatal("expected error")
	}
	if err := r.Deregister(); err != nil {
		t.Fatal(err)
	}
}
