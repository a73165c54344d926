package geo

import (
	"net"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"kestrel/internal/config"
)

// Resolver annotates IPs with GeoLite country and ASN data. Both databases
// are optional; a nil reader simply yields empty annotations so ingestion
// never depends on the mmdb files being present.
type Resolver struct {
	countryDB *geoip2.Reader
	asnDB     *geoip2.Reader
}

// NewResolver opens the configured GeoLite databases. Returns nil when
// neither path is configured.
func NewResolver(cfg config.Config) *Resolver {
	countryPath := cfg.GeoIP.CountryDBPath
	asnPath := cfg.GeoIP.ASNDBPath

	if countryPath == "" && asnPath == "" {
		return nil
	}

	r := &Resolver{}

	if countryPath != "" {
		db, err := geoip2.Open(countryPath)
		if err != nil {
			log.Warn("GeoLite country database unavailable", "path", countryPath, "error", err)
		} else {
			r.countryDB = db
		}
	}

	if asnPath != "" {
		db, err := geoip2.Open(asnPath)
		if err != nil {
			log.Warn("GeoLite ASN database unavailable", "path", asnPath, "error", err)
		} else {
			r.asnDB = db
		}
	}

	if r.countryDB == nil && r.asnDB == nil {
		return nil
	}
	return r
}

// Lookup returns the ISO country code and ASN organisation for the IP.
// Empty strings on any failure.
func (r *Resolver) Lookup(ip string) (country, asnOrg string) {
	if r == nil {
		return "", ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", ""
	}

	if r.countryDB != nil {
		if record, err := r.countryDB.Country(parsed); err == nil && record != nil {
			country = record.Country.IsoCode
		}
	}

	if r.asnDB != nil {
		if record, err := r.asnDB.ASN(parsed); err == nil && record != nil {
			asnOrg = record.AutonomousSystemOrganization
		}
	}

	return country, asnOrg
}

// Close releases the mmdb readers.
func (r *Resolver) Close() {
	if r == nil {
		return
	}
	if r.countryDB != nil {
		_ = r.countryDB.Close()
	}
	if r.asnDB != nil {
		_ = r.asnDB.Close()
	}
}
