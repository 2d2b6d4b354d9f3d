package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		input    string
		expected Handle
	}{
		{"shopA", "shopa"},
		{"@ShopA", "shopa"},
		{"@@shopa", "shopa"},
		{"  @Celulares.MX_  ", "celulares.mx_"},
		{"shopa/", "shopa"},
		{"https://www.instagram.com/TiendaCel/", "tiendacel"},
		{"instagram.com/tiendacel?igshid=abc", "tiendacel"},
		{" @ @shopa", "shopa"},
		{"", ""},
		{"@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHandle(tt.input))
		})
	}
}

func TestNormalizeHandleIdempotent(t *testing.T) {
	inputs := []string{
		"ShopA", "@@X", " @ @Y/ ", "https://instagram.com/Z/?a=b", "a/@", "/@x", "ÁBC", "@ a /",
	}
	for _, in := range inputs {
		once := NormalizeHandle(in)
		twice := NormalizeHandle(string(once))
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeHandleCollapsesSpellings(t *testing.T) {
	assert.Equal(t, NormalizeHandle("@UserB"), NormalizeHandle("userb"))
	assert.Equal(t, NormalizeHandle("USERB"), NormalizeHandle("@userB"))
}

func TestValidHandle(t *testing.T) {
	assert.True(t, ValidHandle("shop.a_1"))
	assert.False(t, ValidHandle(""))
	assert.False(t, ValidHandle("has space"))
	assert.False(t, ValidHandle("dash-name"))
	assert.False(t, ValidHandle("abcdefghijklmnopqrstuvwxyz12345"))
	assert.True(t, ValidHandle("abcdefghijklmnopqrstuvwxyz1234"))
}

func TestNormalizeHandles(t *testing.T) {
	handles, invalid := NormalizeHandles([]string{"@ShopA", "shopa", "userB", "bad name", "", "  "})

	assert.Equal(t, []Handle{"shopa", "userb"}, handles)
	assert.Equal(t, []string{"bad name"}, invalid)
}

func TestHandleProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/shopa/", Handle("shopa").ProfileURL())
	assert.Equal(t, "", Handle("").ProfileURL())
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("repairshop")
	assert.True(t, ok)
	assert.Equal(t, CategoryRepairShop, c)

	c, ok = ParseCategory("nope")
	assert.False(t, ok)
	assert.Equal(t, CategoryUnknown, c)
}
