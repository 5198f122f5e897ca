package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListener_DeliversCode(t *testing.T) {
	l := NewListener(nil)
	l.Expect("s1")
	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/callback?code=C1&state=s1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	msg := l.Wait()().(CallbackMsg)
	if msg.Code != "C1" || msg.Err != nil {
		t.Errorf("unexpected callback %+v", msg)
	}
}

func TestListener_RejectsBadState(t *testing.T) {
	l := NewListener(nil)
	l.Expect("s1")
	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/callback?code=C1&state=other")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	select {
	case m := <-l.codes:
		t.Fatalf("expected no callback, got %+v", m)
	default:
	}
}

func TestListener_ProviderError(t *testing.T) {
	l := NewListener(nil)
	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?error=access_denied&error_description=denied")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := l.Wait()().(CallbackMsg)
	if msg.Err == nil || msg.Code != "" {
		t.Errorf("expected provider error, got %+v", msg)
	}
}

func TestListener_MissingCode(t *testing.T) {
	l := NewListener(nil)
	srv := httptest.NewServer(l.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/callback")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
