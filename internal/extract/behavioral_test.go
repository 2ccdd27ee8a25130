package extract

import (
	"context"
	"reflect"
	"testing"

	"github.com/ppiankov/phishlens/internal/model"
)

func TestBehavioral_Signals(t *testing.T) {
	tests := []struct {
		name string
		page string
		key  string
		want float64
	}{
		{
			name: "oncontextmenu attribute",
			page: `<html><body oncontextmenu="return false"><p>x</p></body></html>`,
			key:  FeatRightClickDisabled,
			want: 1,
		},
		{
			name: "contextmenu listener",
			page: `<html><body><script>document.addEventListener('contextmenu', e => e.preventDefault());</script></body></html>`,
			key:  FeatRightClickDisabled,
			want: 1,
		},
		{
			name: "no right click handler",
			page: `<html><body><script>console.log("hi")</script></body></html>`,
			key:  FeatRightClickDisabled,
			want: 0,
		},
		{
			name: "javascript links",
			page: `<html><body><a href="javascript:go()">a</a><a href=" JAVASCRIPT:go()">b</a><a href="/x">c</a></body></html>`,
			key:  FeatFakeLinkInStatusBar,
			want: 2,
		},
		{
			name: "popup calls",
			page: `<html><body><script>window.open("https://x.test/")</script><script>window.open ('/y')</script></body></html>`,
			key:  FeatPopUpWindow,
			want: 2,
		},
		{
			name: "external meta script link ratio",
			page: `<html><head>
				<meta charset="utf-8">
				<script src="https://tracker.net/t.js"></script>
				<link rel="stylesheet" href="/own.css">
				<link rel="preconnect" href="https://cdn.example.com/">
			</head><body></body></html>`,
			key:  FeatExtMetaScriptLinkRT,
			want: 0.25,
		},
	}

	b := NewBehavioral()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := b.Extract(context.Background(), "https://example.com/", documentResult(t, tt.page, "https://example.com/"))
			if f[tt.key] != tt.want {
				t.Errorf("%s: expected %v, got %v", tt.key, tt.want, f[tt.key])
			}
		})
	}
}

func TestBehavioral_UnavailableYieldsDefaults(t *testing.T) {
	b := NewBehavioral()
	f := b.Extract(context.Background(), "https://example.com/", model.UnavailableResult("timeout"))
	if !reflect.DeepEqual(f, b.Defaults()) {
		t.Errorf("expected defaults, got %v", f)
	}
}
