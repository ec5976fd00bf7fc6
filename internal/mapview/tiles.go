package mapview

import (
	"math"
	"strconv"
	"strings"

	"chizu/campus-client/internal/model"
)

var tileSubdomains = []string{"a", "b", "c"}

// Tile is a slippy-map tile address.
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// TileFor returns the Web Mercator tile containing p at zoom z.
func TileFor(p model.LatLng, z int) Tile {
	n := math.Exp2(float64(z))
	lat := p.Lat * math.Pi / 180

	x := int(math.Floor((p.Lng + 180) / 360 * n))
	y := int(math.Floor((1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2 * n))

	maxIndex := int(n) - 1
	return Tile{X: clampInt(x, 0, maxIndex), Y: clampInt(y, 0, maxIndex), Z: z}
}

// TileURL expands a {s}/{z}/{x}/{y} template for t.
func TileURL(template string, t Tile) string {
	sub := tileSubdomains[(t.X+t.Y)%len(tileSubdomains)]
	r := strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	)
	return r.Replace(template)
}

// MaxTiles bounds how many tiles TilesFor will list for one view.
const MaxTiles = 256

// TilesFor lists the tiles covering b at zoom z, row by row. Corners given
// in the wrong order are swapped first. A box needing more than MaxTiles
// tiles yields none.
func TilesFor(b Bounds, z int) []Tile {
	b = b.Normalize()
	nw := TileFor(model.LatLng{Lat: b.NorthEast.Lat, Lng: b.SouthWest.Lng}, z)
	se := TileFor(model.LatLng{Lat: b.SouthWest.Lat, Lng: b.NorthEast.Lng}, z)

	count := (se.X - nw.X + 1) * (se.Y - nw.Y + 1)
	if count <= 0 || count > MaxTiles {
		return nil
	}

	tiles := make([]Tile, 0, count)
	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			tiles = append(tiles, Tile{X: x, Y: y, Z: z})
		}
	}
	return tiles
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
