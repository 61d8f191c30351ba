package names

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mathisdt/webuntis-fetcher/internal/timetable"
)

const testStaffPage = `<html><body>
<table>
<tr><th>Vorname</th><th>Nachname</th><th>Kürzel</th></tr>
<tr><td>Anna</td><td>Schmidt</td><td>SMI</td></tr>
<tr><td>Bernd</td><td><a href="#">Meyer</a></td><td> MEY </td></tr>
<tr><td>Carla</td><td>Pape-Neu</td><td>PAP</td></tr>
</table>
<table><tr><th>Nachname</th><th>Kürzel</th></tr><tr><td>X</td><td>XX</td></tr></table>
</body></html>`

func TestNew_Unknown(t *testing.T) {
	_, err := New(context.Background(), "eval_me", Config{})
	if !errors.Is(err, ErrUnknownResolver) {
		t.Errorf("期望 ErrUnknownResolver, 实际 %v", err)
	}
}

func TestNew_IdentityAndStatic(t *testing.T) {
	id, err := New(context.Background(), "identity", Config{})
	if err != nil {
		t.Fatalf("创建 identity 失败: %v", err)
	}
	if id.FullName("SMI") != "" {
		t.Error("identity 不应提供映射")
	}

	st, err := New(context.Background(), "static", Config{Static: map[string]string{"SMI": "Schmidt"}})
	if err != nil {
		t.Fatalf("创建 static 失败: %v", err)
	}
	if st.FullName("SMI") != "Schmidt" || st.FullName("XYZ") != "" {
		t.Error("static 映射错误")
	}
}

func TestRegister(t *testing.T) {
	Register("upper", func(context.Context, Config) (timetable.NameResolver, error) {
		return Static{"a": "A"}, nil
	})
	r, err := New(context.Background(), "upper", Config{})
	if err != nil || r.FullName("a") != "A" {
		t.Errorf("注册的解析器应可使用: %v", err)
	}
	found := false
	for _, n := range Names() {
		if n == "upper" {
			found = true
		}
	}
	if !found {
		t.Error("Names 应包含新注册的解析器")
	}
}

func TestKKSHannover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testStaffPage))
	}))
	defer srv.Close()

	r, err := New(context.Background(), "kks_hannover", Config{URL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("创建 kks_hannover 失败: %v", err)
	}

	cases := map[string]string{
		"SMI": "Schmidt",
		"MEY": "Meyer",
		"PAP": "Pape-Neu", // 网站数据优先于内置补充
		"HAT": "Hatala",
		"XX":  "", // 只读取第一个表格
	}
	for short, want := range cases {
		if got := r.FullName(short); got != want {
			t.Errorf("FullName(%q) = %q, 期望 %q", short, got, want)
		}
	}
}

func TestKKSHannover_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(context.Background(), "kks_hannover", Config{URL: srv.URL}); err == nil {
		t.Error("HTTP 错误时应返回错误")
	}
}
