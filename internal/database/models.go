package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/ecoscan/internal/history"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

const (
	stmtInsertScan          = "insert_scan"
	stmtGetScan             = "get_scan"
	stmtListScans           = "list_scans"
	stmtListScansByDecision = "list_scans_by_decision"
	stmtDeleteScan          = "delete_scan"
	stmtGetImpact           = "get_impact"
	stmtUpdateImpact        = "update_impact"
)

// StoredScan is a scan history entry together with the region it was
// scored for.
type StoredScan struct {
	history.ScanHistory
	Region string `json:"region,omitempty"`
}

// scanArgs flattens a scan into insert_scan arguments.
func scanArgs(scan history.ScanHistory, region string) ([]interface{}, error) {
	certifications, err := json.Marshal(nonNilCertifications(scan.Certifications))
	if err != nil {
		return nil, fmt.Errorf("failed to encode certifications: %w", err)
	}
	materials, err := json.Marshal(nonNilMaterials(scan.Materials))
	if err != nil {
		return nil, fmt.Errorf("failed to encode materials: %w", err)
	}

	return []interface{}{
		scan.ID, scan.ProductID, scan.ProductName, scan.Brand, scan.Category, scan.ImageURL,
		scan.EcoScore, scan.PackagingScore, scan.CarbonScore, scan.EthicsScore,
		scan.ScanDate.UnixNano(), string(scan.Decision), string(scan.PackagingType),
		string(certifications), string(materials), scan.IsLocal, region,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRow reads one row of scanColumns.
func scanRow(row rowScanner) (StoredScan, error) {
	var (
		stored         StoredScan
		scanDate       int64
		decision       string
		packagingType  string
		certifications string
		materials      string
	)

	s := &stored.ScanHistory
	err := row.Scan(
		&s.ID, &s.ProductID, &s.ProductName, &s.Brand, &s.Category, &s.ImageURL,
		&s.EcoScore, &s.PackagingScore, &s.CarbonScore, &s.EthicsScore,
		&scanDate, &decision, &packagingType,
		&certifications, &materials, &s.IsLocal, &stored.Region,
	)
	if err != nil {
		return StoredScan{}, err
	}

	s.ScanDate = history.NewScanTime(time.Unix(0, scanDate))
	s.Decision = history.Decision(decision)
	s.PackagingType = scoring.PackagingType(packagingType)

	if err := json.Unmarshal([]byte(certifications), &s.Certifications); err != nil {
		return StoredScan{}, fmt.Errorf("scan %s: failed to decode certifications: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(materials), &s.Materials); err != nil {
		return StoredScan{}, fmt.Errorf("scan %s: failed to decode materials: %w", s.ID, err)
	}
	s.Certifications = nonNilCertifications(s.Certifications)
	s.Materials = nonNilMaterials(s.Materials)

	return stored, nil
}

func scanRows(rows *sql.Rows) ([]StoredScan, error) {
	defer rows.Close()

	scans := make([]StoredScan, 0)
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func nonNilCertifications(in []scoring.Certification) []scoring.Certification {
	if in == nil {
		return []scoring.Certification{}
	}
	return in
}

func nonNilMaterials(in []scoring.Material) []scoring.Material {
	if in == nil {
		return []scoring.Material{}
	}
	return in
}
