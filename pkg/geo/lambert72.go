package geo

import "math"

// Belgian Lambert 72 (EPSG:31370): Lambert conformal conic with two standard
// parallels on the International 1924 ellipsoid, Belge 1972 datum.
const (
	intlA  = 6378388.0
	intlF  = 1 / 297.0
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563

	lambertLat1 = 51.16666723333333
	lambertLat2 = 49.8333339
	lambertLat0 = 90.0
	lambertLon0 = 4.367486666666666
	lambertX0   = 150000.013
	lambertY0   = 5400088.438
)

// Belge 1972 -> WGS84 seven parameter shift, position vector convention.
// Rotations in arc seconds, scale in ppm.
var belge72ToWGS84 = helmert{
	tx: -106.8686, ty: 52.2978, tz: -103.7239,
	rx: 0.3366, ry: -0.457, rz: 1.8422,
	s: -1.2747,
}

type ellipsoid struct {
	a, e2 float64
}

func newEllipsoid(a, f float64) ellipsoid {
	return ellipsoid{a: a, e2: f * (2 - f)}
}

var (
	intl1924 = newEllipsoid(intlA, intlF)
	wgs84    = newEllipsoid(wgs84A, wgs84F)
)

type helmert struct {
	tx, ty, tz float64
	rx, ry, rz float64
	s          float64
}

func (h helmert) apply(x, y, z float64) (float64, float64, float64) {
	rx := arcSecToRad(h.rx)
	ry := arcSecToRad(h.ry)
	rz := arcSecToRad(h.rz)
	m := 1 + h.s*1e-6
	return h.tx + m*(x-rz*y+ry*z),
		h.ty + m*(rz*x+y-rx*z),
		h.tz + m*(-ry*x+rx*y+z)
}

func (h helmert) inverse() helmert {
	return helmert{tx: -h.tx, ty: -h.ty, tz: -h.tz, rx: -h.rx, ry: -h.ry, rz: -h.rz, s: -h.s}
}

// lcc holds the derived constants of the projection.
type lcc struct {
	e     float64
	n     float64
	aF    float64
	rho0  float64
	lon0  float64
	x0    float64
	y0    float64
	ellip ellipsoid
}

var lambert72 = newLCC(intl1924, lambertLat1, lambertLat2, lambertLat0, lambertLon0, lambertX0, lambertY0)

func newLCC(el ellipsoid, lat1, lat2, lat0, lon0, x0, y0 float64) lcc {
	e := math.Sqrt(el.e2)
	p1, p2, p0 := degToRad(lat1), degToRad(lat2), degToRad(lat0)

	m1, m2 := lccM(p1, e), lccM(p2, e)
	t1, t2, t0 := lccT(p1, e), lccT(p2, e), lccT(p0, e)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))

	return lcc{
		e:     e,
		n:     n,
		aF:    el.a * f,
		rho0:  el.a * f * math.Pow(t0, n),
		lon0:  degToRad(lon0),
		x0:    x0,
		y0:    y0,
		ellip: el,
	}
}

func lccM(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
}

func lccT(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

func (p lcc) forward(lonDeg, latDeg float64) (float64, float64) {
	phi := degToRad(latDeg)
	rho := p.aF * math.Pow(lccT(phi, p.e), p.n)
	theta := p.n * (degToRad(lonDeg) - p.lon0)
	return p.x0 + rho*math.Sin(theta), p.y0 + p.rho0 - rho*math.Cos(theta)
}

func (p lcc) inverse(x, y float64) (float64, float64) {
	dx := x - p.x0
	dy := p.rho0 - (y - p.y0)
	rho := math.Copysign(math.Hypot(dx, dy), p.n)
	theta := math.Atan2(dx, dy)

	t := math.Pow(rho/p.aF, 1/p.n)
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		s := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-p.e*s)/(1+p.e*s), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	return radToDeg(theta/p.n + p.lon0), radToDeg(phi)
}

func toGeocentric(el ellipsoid, lonDeg, latDeg float64) (float64, float64, float64) {
	lon, lat := degToRad(lonDeg), degToRad(latDeg)
	sinLat := math.Sin(lat)
	nu := el.a / math.Sqrt(1-el.e2*sinLat*sinLat)
	return nu * math.Cos(lat) * math.Cos(lon),
		nu * math.Cos(lat) * math.Sin(lon),
		nu * (1 - el.e2) * sinLat
}

func fromGeocentric(el ellipsoid, x, y, z float64) (float64, float64) {
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-el.e2))
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		nu := el.a / math.Sqrt(1-el.e2*sinLat*sinLat)
		next := math.Atan2(z+el.e2*nu*sinLat, p)
		if math.Abs(next-lat) < 1e-13 {
			lat = next
			break
		}
		lat = next
	}
	return radToDeg(lon), radToDeg(lat)
}

// ToLambert72 projects a WGS84 longitude/latitude to Belgian Lambert 72
// easting/northing in metres.
func ToLambert72(lon, lat float64) (x, y float64) {
	gx, gy, gz := toGeocentric(wgs84, lon, lat)
	bx, by, bz := belge72ToWGS84.inverse().apply(gx, gy, gz)
	blon, blat := fromGeocentric(intl1924, bx, by, bz)
	return lambert72.forward(blon, blat)
}

// FromLambert72 converts Belgian Lambert 72 coordinates back to WGS84
// longitude/latitude in degrees.
func FromLambert72(x, y float64) (lon, lat float64) {
	blon, blat := lambert72.inverse(x, y)
	bx, by, bz := toGeocentric(intl1924, blon, blat)
	gx, gy, gz := belge72ToWGS84.apply(bx, by, bz)
	return fromGeocentric(wgs84, gx, gy, gz)
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func arcSecToRad(s float64) float64 { return s * math.Pi / (180 * 3600) }
