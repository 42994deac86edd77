package filtering

import (
	"testing"
)

func TestMapFileName(t *testing.T) {
	tests := []struct {
		template string
		simID    int
		want     string
		wantErr  bool
	}{
		{template: "sims_{sim_id}.fits", simID: 7, want: "sims_7.fits"},
		{template: "pureB_nside512_fwhm30.0_sim{sim_id:04d}.fits", simID: 7,
			want: "pureB_nside512_fwhm30.0_sim0007.fits"},
		{template: "sims_{sim_id:02d}_{sim_id}.fits", simID: 3, want: "sims_03_3.fits"},
		{template: "sims.fits", wantErr: true},
		{template: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := MapFileName(tt.template, tt.simID)
		if tt.wantErr {
			if err == nil {
				t.Errorf("MapFileName(%q): want error, got %q", tt.template, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("MapFileName(%q): %v", tt.template, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MapFileName(%q, %d) = %q, want %q", tt.template, tt.simID, got, tt.want)
		}
	}
}

func TestAtomicNames(t *testing.T) {
	wmap, w, err := AtomicNames("pureT_sim{sim_id:04d}.fits", 12, "obs1", "ws0", "f090")
	if err != nil {
		t.Fatal(err)
	}
	wantWmap := "pureT_sim0012_obsidobs1_ws0_f090_wmap.fits"
	wantW := "pureT_sim0012_obsidobs1_ws0_f090_w.fits"
	if wmap != wantWmap {
		t.Errorf("wmap name = %q, want %q", wmap, wantWmap)
	}
	if w != wantW {
		t.Errorf("weights name = %q, want %q", w, wantW)
	}

	// Deterministic: the same task always names the same pair.
	wmap2, w2, err := AtomicNames("pureT_sim{sim_id:04d}.fits", 12, "obs1", "ws0", "f090")
	if err != nil {
		t.Fatal(err)
	}
	if wmap2 != wmap || w2 != w {
		t.Error("AtomicNames is not deterministic")
	}
}

func TestAtomicNamesNoPlaceholder(t *testing.T) {
	if _, _, err := AtomicNames("sims.fits", 0, "obs1", "ws0", "f090"); err == nil {
		t.Fatal("want error for template without placeholder")
	}
}
