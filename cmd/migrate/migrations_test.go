package main

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrdersAndPairsDownFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"002_emergency_services.sql":      {Data: []byte("CREATE TABLE emergency_services ();")},
		"002_emergency_services.down.sql": {Data: []byte("DROP TABLE emergency_services;")},
		"001_init_extensions.sql":         {Data: []byte("CREATE EXTENSION postgis;")},
		"010_later.sql":                   {Data: []byte("SELECT 1;")},
		"README.md":                       {Data: []byte("ignored")},
	}

	all, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{all[0].Version, all[1].Version, all[2].Version})
	assert.Equal(t, "emergency_services", all[1].Name)
	assert.Empty(t, all[0].Down)
	assert.Equal(t, "DROP TABLE emergency_services;", all[1].Down)
}

func TestLoadMigrations_RejectsMalformed(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"no version":      {"init.sql": {Data: []byte("x")}},
		"bad version":     {"abc_init.sql": {Data: []byte("x")}},
		"down without up": {"003_x.down.sql": {Data: []byte("x")}},
		"name mismatch": {
			"004_a.sql":      {Data: []byte("x")},
			"004_b.down.sql": {Data: []byte("x")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}

func TestPendingSkipsApplied(t *testing.T) {
	all := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	todo := pending(all, map[int]bool{1: true, 3: true})
	require.Len(t, todo, 1)
	assert.Equal(t, 2, todo[0].Version)

	assert.Len(t, pending(all, nil), 3)
	assert.Empty(t, pending(all, map[int]bool{1: true, 2: true, 3: true}))
}

func TestLatestApplied(t *testing.T) {
	all := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	m, ok := latestApplied(all, map[int]bool{1: true, 2: true})
	require.True(t, ok)
	assert.Equal(t, 2, m.Version)

	_, ok = latestApplied(all, map[int]bool{})
	assert.False(t, ok)
}
