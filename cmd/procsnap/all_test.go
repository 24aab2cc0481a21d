package main

import "testing"

func TestParsePidList(t *testing.T) {
	cases := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"1,2,3", []int{1, 2, 3}, false},
		{" 1 , 2 ,3", []int{1, 2, 3}, false},
		{"7", []int{7}, false},
		{"", nil, true},
		{"  ", nil, true},
		{"1,,2", []int{1, 2}, false},
		{"1,abc", nil, true},
	}
	for _, c := range cases {
		got, err := parsePidList(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parsePidList(%q): expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePidList(%q): unexpected error: %v", c.in, err)
			continue
		}
		if len(got) != len(c.want) {
			t.Fatalf("parsePidList(%q): got %v want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("parsePidList(%q)[%d]: got %d want %d", c.in, i, got[i], c.want[i])
			}
		}
	}
}
