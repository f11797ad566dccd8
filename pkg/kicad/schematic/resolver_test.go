package schematic

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/symbols"
)

// placedFixture is a minimal schematic with one embedded definition
// carrying a single pin at local offset (2.54, 0), and one instance of
// it whose placement clause is injected by the caller.
func placedFixture(placement string) string {
	return fmt.Sprintf(`(kicad_sch (version 20231120) (generator "eeschema")
  (lib_symbols
    (symbol "Test:U"
      (symbol "U_1_1"
        (pin input line (at 2.54 0 0) (length 1.27)
          (name "IN" (effects (font (size 1.27 1.27))))
          (number "1" (effects (font (size 1.27 1.27))))
        )
      )
    )
  )
  (symbol (lib_id "Test:U") %s (unit 1)
    (uuid "b7a40aa1-0000-0000-0000-000000000001")
    (property "Reference" "U1" (at 0 0 0))
    (property "Value" "U" (at 0 0 0))
  )
)
`, placement)
}

func resolverFor(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(symbols.NewCatalog(nil, nil), nil)
}

func TestPinPositionRotation(t *testing.T) {
	cases := []struct {
		rotation   float64
		wantX      float64
		wantY      float64
		wantEffAng float64
	}{
		{0, 2.54, 0, 0},
		{90, 0, 2.54, 90},
		{180, -2.54, 0, 180},
		{270, 0, -2.54, 270},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.rotation), func(t *testing.T) {
			sch, err := Parse([]byte(placedFixture(fmt.Sprintf("(at 100 50 %v)", tc.rotation))))
			if err != nil {
				t.Fatal(err)
			}
			loc, err := resolverFor(t).PinPosition(sch, "U1", "1")
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(loc.X-(100+tc.wantX)) > 1e-6 || math.Abs(loc.Y-(50+tc.wantY)) > 1e-6 {
				t.Errorf("rotation %v: got (%v, %v), want (%v, %v)",
					tc.rotation, loc.X, loc.Y, 100+tc.wantX, 50+tc.wantY)
			}
			if loc.EffectiveAngle != tc.wantEffAng {
				t.Errorf("rotation %v: effective angle = %v, want %v",
					tc.rotation, loc.EffectiveAngle, tc.wantEffAng)
			}
		})
	}
}

func TestPinPositionZeroRotationIsExact(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100.33 50.17 0)")))
	if err != nil {
		t.Fatal(err)
	}
	loc, err := resolverFor(t).PinPosition(sch, "U1", "1")
	if err != nil {
		t.Fatal(err)
	}
	// 0° skips the matrix entirely, so the sums are exact.
	if loc.X != 100.33+2.54 || loc.Y != 50.17 {
		t.Errorf("got (%v, %v)", loc.X, loc.Y)
	}
}

func TestPinPositionMirror(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100 50 0) (mirror y)")))
	if err != nil {
		t.Fatal(err)
	}
	loc, err := resolverFor(t).PinPosition(sch, "U1", "1")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(loc.X-(100-2.54)) > 1e-6 || math.Abs(loc.Y-50) > 1e-6 {
		t.Errorf("mirror y: got (%v, %v), want (97.46, 50)", loc.X, loc.Y)
	}
}

func TestPinPositionByName(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100 50 0)")))
	if err != nil {
		t.Fatal(err)
	}
	loc, err := resolverFor(t).PinPosition(sch, "U1", "in")
	if err != nil {
		t.Fatal(err)
	}
	if loc.PinNumber != "1" {
		t.Errorf("name lookup resolved pin %q", loc.PinNumber)
	}
}

func TestPinPositionReferenceVariant(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100 50 0)")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolverFor(t).PinPosition(sch, "U1_", "1"); err != nil {
		t.Errorf("variant U1_ should resolve U1: %v", err)
	}
	_, err = resolverFor(t).PinPosition(sch, "U9", "1")
	var rnf *ReferenceNotFoundError
	if !errors.As(err, &rnf) {
		t.Fatalf("err = %v, want ReferenceNotFoundError", err)
	}
}

func TestPinNotFoundListsPins(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100 50 0)")))
	if err != nil {
		t.Fatal(err)
	}
	_, err = resolverFor(t).PinPosition(sch, "U1", "99")
	var pnf *PinNotFoundError
	if !errors.As(err, &pnf) {
		t.Fatalf("err = %v, want PinNotFoundError", err)
	}
	if len(pnf.Numbers) != 1 || pnf.Numbers[0] != "1" {
		t.Errorf("Numbers = %v", pnf.Numbers)
	}
	if len(pnf.Names) != 1 || pnf.Names[0] != "IN" {
		t.Errorf("Names = %v", pnf.Names)
	}
	if !strings.Contains(err.Error(), "Available pin numbers") {
		t.Errorf("message %q lacks pin listing", err)
	}
}

func TestCardinalDirection(t *testing.T) {
	cases := map[float64]string{
		0: "right", 44: "right", 350: "right",
		90: "up", 100: "up",
		180: "left", 200: "left",
		270: "down", 300: "down",
	}
	for angle, want := range cases {
		got := PinLocation{EffectiveAngle: angle}.CardinalDirection()
		if got != want {
			t.Errorf("CardinalDirection(%v) = %q, want %q", angle, got, want)
		}
	}
}

func TestAllPinPositions(t *testing.T) {
	sch, err := Parse([]byte(placedFixture("(at 100 50 0)")))
	if err != nil {
		t.Fatal(err)
	}
	locs, err := resolverFor(t).AllPinPositions(sch, "U1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].PinNumber != "1" {
		t.Fatalf("locs = %+v", locs)
	}
}

func TestAllPinPositionsPinlessSymbol(t *testing.T) {
	// Graphic-only definitions resolve to an empty list, not an error.
	text := `(kicad_sch (version 20231120) (generator "eeschema")
  (lib_symbols
    (symbol "Test:Logo"
      (symbol "Logo_0_1"
        (rectangle (start -2.54 -2.54) (end 2.54 2.54))
      )
    )
  )
  (symbol (lib_id "Test:Logo") (at 100 50 0) (unit 1)
    (property "Reference" "G1" (at 0 0 0))
    (property "Value" "Logo" (at 0 0 0))
  )
)
`
	sch, err := Parse([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	locs, err := resolverFor(t).AllPinPositions(sch, "G1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 0 {
		t.Fatalf("locs = %+v, want none", locs)
	}
}
