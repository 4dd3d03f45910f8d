package persistence

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
)

// =============================================================================
// Report Adapter (PostgreSQL)
// =============================================================================

// ReportAdapter implements out.ReportSource with aggregate queries over
// ccm_generaciones. A branchID of 0 disables the branch filter.
type ReportAdapter struct {
	db *sqlx.DB
}

var _ out.ReportSource = (*ReportAdapter)(nil)

func NewReportAdapter(db *sqlx.DB) *ReportAdapter {
	return &ReportAdapter{db: db}
}

type branchSummaryRow struct {
	Rama               int     `db:"rama"`
	Distrito           string  `db:"distrito"`
	FirstGeneracion    *string `db:"first_generacion"`
	FirstLlegada       *string `db:"first_llegada"`
	LastSalida         *string `db:"last_salida"`
	TotalMisioneros    int     `db:"total_misioneros"`
	TotalCompanerismos int     `db:"total_companerismos"`
	Elderes            int     `db:"elderes"`
	Hermanas           int     `db:"hermanas"`
}

const branchSummaryQuery = `
	SELECT
		COALESCE(rama, 0) AS rama,
		COALESCE(distrito, '') AS distrito,
		to_char(MIN(fecha_generacion), 'YYYY-MM-DD') AS first_generacion,
		to_char(MIN(fecha_llegada), 'YYYY-MM-DD') AS first_llegada,
		to_char(MAX(fecha_salida), 'YYYY-MM-DD') AS last_salida,
		COUNT(*) AS total_misioneros,
		COUNT(DISTINCT numero_companerismo) AS total_companerismos,
		COUNT(*) FILTER (WHERE tipo ILIKE 'elder%') AS elderes,
		COUNT(*) FILTER (WHERE tipo ILIKE 'herman%') AS hermanas
	FROM ccm_generaciones
	WHERE activo = true AND ($1 = 0 OR rama = $1)
	GROUP BY rama, distrito`

func (a *ReportAdapter) BranchSummaries(ctx context.Context, branchID int) ([]domain.BranchSummary, error) {
	var rows []branchSummaryRow
	if err := a.db.SelectContext(ctx, &rows, branchSummaryQuery, branchID); err != nil {
		return nil, err
	}

	summaries := make([]domain.BranchSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.BranchSummary{
			BranchID:            row.Rama,
			District:            row.Distrito,
			FirstGenerationDate: strOrEmpty(row.FirstGeneracion),
			FirstCCMArrival:     strOrEmpty(row.FirstLlegada),
			LastCCMDeparture:    strOrEmpty(row.LastSalida),
			TotalMissionaries:   row.TotalMisioneros,
			TotalCompanionships: row.TotalCompanerismos,
			EldersCount:         row.Elderes,
			SistersCount:        row.Hermanas,
		})
	}
	return summaries, nil
}

// DistrictKPIs expands the per-district aggregates into one row per metric.
func (a *ReportAdapter) DistrictKPIs(ctx context.Context, branchID int) ([]domain.DistrictKPI, error) {
	summaries, err := a.BranchSummaries(ctx, branchID)
	if err != nil {
		return nil, err
	}

	kpis := make([]domain.DistrictKPI, 0, len(summaries)*4)
	for _, s := range summaries {
		metrics := []struct {
			name  string
			value float64
		}{
			{"total_missionaries", float64(s.TotalMissionaries)},
			{"total_companionships", float64(s.TotalCompanionships)},
			{"elders", float64(s.EldersCount)},
			{"sisters", float64(s.SistersCount)},
		}
		for _, m := range metrics {
			kpis = append(kpis, domain.DistrictKPI{
				BranchID: s.BranchID,
				District: s.District,
				Metric:   m.name,
				Value:    m.value,
				Unit:     "missionaries",
			})
		}
	}
	return kpis, nil
}

type arrivalRow struct {
	Distrito   string  `db:"distrito"`
	IDDistrito *string `db:"id_distrito"`
	Rama       int     `db:"rama"`
	Llegada    string  `db:"llegada"`
	Salida     *string `db:"salida"`
	Misioneros int     `db:"misioneros"`
}

const upcomingArrivalsQuery = `
	SELECT
		COALESCE(distrito, '') AS distrito,
		MIN(id_distrito) AS id_distrito,
		COALESCE(rama, 0) AS rama,
		to_char(fecha_llegada, 'YYYY-MM-DD') AS llegada,
		to_char(MAX(fecha_salida), 'YYYY-MM-DD') AS salida,
		COUNT(*) AS misioneros
	FROM ccm_generaciones
	WHERE activo = true
		AND ($1 = 0 OR rama = $1)
		AND fecha_llegada BETWEEN $2 AND $3
	GROUP BY distrito, rama, fecha_llegada
	ORDER BY fecha_llegada, distrito`

func (a *ReportAdapter) UpcomingArrivals(ctx context.Context, branchID int, from, to time.Time) ([]domain.UpcomingArrival, error) {
	var rows []arrivalRow
	err := a.db.SelectContext(ctx, &rows, upcomingArrivalsQuery,
		branchID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	arrivals := make([]domain.UpcomingArrival, 0, len(rows))
	for _, row := range rows {
		arrival := domain.UpcomingArrival{
			District:          row.Distrito,
			RDistrict:         strOrEmpty(row.IDDistrito),
			BranchID:          row.Rama,
			ArrivalDate:       row.Llegada,
			DepartureDate:     strOrEmpty(row.Salida),
			MissionariesCount: row.Misioneros,
			Status:            "scheduled",
		}
		if d, err := time.Parse("2006-01-02", row.Llegada); err == nil && !d.After(time.Now()) {
			arrival.Status = "arrived"
		}
		if arrival.DepartureDate != "" {
			if dep, err := time.Parse("2006-01-02", arrival.DepartureDate); err == nil {
				if arr, err := time.Parse("2006-01-02", row.Llegada); err == nil && dep.After(arr) {
					arrival.DurationWeeks = int(dep.Sub(arr).Hours() / 24 / 7)
				}
			}
		}
		arrivals = append(arrivals, arrival)
	}
	return arrivals, nil
}

type birthdayRow struct {
	ID          int64   `db:"id"`
	Nombre      string  `db:"nombre_misionero"`
	Tratamiento *string `db:"tratamiento"`
	Distrito    *string `db:"distrito"`
	Rama        int     `db:"rama"`
	Nacimiento  string  `db:"nacimiento"`
}

const birthdaysQuery = `
	SELECT
		id,
		nombre_misionero,
		tratamiento,
		distrito,
		COALESCE(rama, 0) AS rama,
		to_char(fecha_nacimiento, 'YYYY-MM-DD') AS nacimiento
	FROM ccm_generaciones
	WHERE activo = true
		AND ($1 = 0 OR rama = $1)
		AND fecha_nacimiento IS NOT NULL`

// UpcomingBirthdays computes each missionary's next birthday occurrence and
// keeps the ones falling inside [from, to]. The calendar roll-over is done
// here rather than in SQL.
func (a *ReportAdapter) UpcomingBirthdays(ctx context.Context, branchID int, from, to time.Time) ([]domain.UpcomingBirthday, error) {
	var rows []birthdayRow
	if err := a.db.SelectContext(ctx, &rows, birthdaysQuery, branchID); err != nil {
		return nil, err
	}

	birthdays := make([]domain.UpcomingBirthday, 0)
	for _, row := range rows {
		born, err := time.Parse("2006-01-02", row.Nacimiento)
		if err != nil {
			continue
		}

		next := nextBirthday(born, from)
		if next.After(to) {
			continue
		}
		birthdays = append(birthdays, domain.UpcomingBirthday{
			MissionaryID:   row.ID,
			MissionaryName: row.Nombre,
			Treatment:      strOrEmpty(row.Tratamiento),
			District:       strOrEmpty(row.Distrito),
			BranchID:       row.Rama,
			Birthday:       next.Format("2006-01-02"),
			Age:            next.Year() - born.Year(),
		})
	}
	return birthdays, nil
}

// nextBirthday returns the first occurrence of born's month and day on or
// after from. Feb 29 maps to Mar 1 on non-leap years.
func nextBirthday(born, from time.Time) time.Time {
	next := time.Date(from.Year(), born.Month(), born.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(from.Truncate(24 * time.Hour)) {
		next = time.Date(from.Year()+1, born.Month(), born.Day(), 0, 0, 0, 0, time.UTC)
	}
	return next
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
