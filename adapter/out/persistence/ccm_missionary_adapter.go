// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/logger"
)

// =============================================================================
// Missionary Adapter (PostgreSQL)
// =============================================================================

// MissionaryAdapter implements out.MissionaryRepository on the
// ccm_generaciones table.
type MissionaryAdapter struct {
	db *sqlx.DB
}

var _ out.MissionaryRepository = (*MissionaryAdapter)(nil)

func NewMissionaryAdapter(db *sqlx.DB) *MissionaryAdapter {
	return &MissionaryAdapter{db: db}
}

// =============================================================================
// Database Row Mapping
// =============================================================================

type missionaryRow struct {
	ID                 int64     `db:"id"`
	IDDistrito         *string   `db:"id_distrito"`
	Tipo               *string   `db:"tipo"`
	Rama               *int      `db:"rama"`
	Distrito           *string   `db:"distrito"`
	Pais               *string   `db:"pais"`
	NumeroLista        *int      `db:"numero_lista"`
	NumeroCompanerismo *int      `db:"numero_companerismo"`
	Tratamiento        *string   `db:"tratamiento"`
	NombreMisionero    string    `db:"nombre_misionero"`
	Companero          *string   `db:"companero"`
	MisionAsignada     *string   `db:"mision_asignada"`
	Estaca             *string   `db:"estaca"`
	Hospedaje          *string   `db:"hospedaje"`
	Foto               *string   `db:"foto"`
	FechaLlegada       *string   `db:"fecha_llegada"`
	FechaSalida        *string   `db:"fecha_salida"`
	FechaGeneracion    *string   `db:"fecha_generacion"`
	Comentarios        *string   `db:"comentarios"`
	Investido          bool      `db:"investido"`
	FechaNacimiento    *string   `db:"fecha_nacimiento"`
	FotoTomada         bool      `db:"foto_tomada"`
	Pasaporte          bool      `db:"pasaporte"`
	FolioPasaporte     *string   `db:"folio_pasaporte"`
	FM                 *string   `db:"fm"`
	IPad               bool      `db:"ipad"`
	Closet             *string   `db:"closet"`
	LlegadaSecundaria  *string   `db:"llegada_secundaria"`
	PDay               *string   `db:"pday"`
	Host               bool      `db:"host"`
	TresSemanas        bool      `db:"tres_semanas"`
	Device             bool      `db:"device"`
	CorreoMisional     *string   `db:"correo_misional"`
	CorreoPersonal     *string   `db:"correo_personal"`
	FechaPresencial    *string   `db:"fecha_presencial"`
	Activo             bool      `db:"activo"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func newMissionaryRow(r *domain.MissionaryRecord) missionaryRow {
	return missionaryRow{
		ID:                 r.ID,
		IDDistrito:         nullStr(r.DistrictID),
		Tipo:               nullStr(r.Type),
		Rama:               nullIntValue(r.Branch),
		Distrito:           nullStr(r.District),
		Pais:               nullStr(r.Country),
		NumeroLista:        r.ListNumber,
		NumeroCompanerismo: r.CompanionshipNumber,
		Tratamiento:        nullStr(r.Treatment),
		NombreMisionero:    r.Name,
		Companero:          nullStr(r.Companion),
		MisionAsignada:     nullStr(r.AssignedMission),
		Estaca:             nullStr(r.Stake),
		Hospedaje:          nullStr(r.Lodging),
		Foto:               nullStr(r.Photo),
		FechaLlegada:       nullStr(r.Arrival),
		FechaSalida:        nullStr(r.Departure),
		FechaGeneracion:    nullStr(r.Generation),
		Comentarios:        nullStr(r.Comments),
		Investido:          r.Endowed,
		FechaNacimiento:    nullStr(r.BirthDate),
		FotoTomada:         r.PhotoTaken,
		Pasaporte:          r.Passport,
		FolioPasaporte:     nullStr(r.PassportFolio),
		FM:                 nullStr(r.FM),
		IPad:               r.IPad,
		Closet:             nullStr(r.Closet),
		LlegadaSecundaria:  nullStr(r.SecondaryArrival),
		PDay:               nullStr(r.PDay),
		Host:               r.Host,
		TresSemanas:        r.ThreeWeeks,
		Device:             r.Device,
		CorreoMisional:     nullStr(r.MissionEmail),
		CorreoPersonal:     nullStr(r.PersonalEmail),
		FechaPresencial:    nullStr(r.InPersonDate),
		Activo:             r.Active,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIntValue(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// =============================================================================
// Operations
// =============================================================================

const insertMissionaryQuery = `
	INSERT INTO ccm_generaciones (
		id, id_distrito, tipo, rama, distrito, pais,
		numero_lista, numero_companerismo, tratamiento, nombre_misionero,
		companero, mision_asignada, estaca, hospedaje, foto,
		fecha_llegada, fecha_salida, fecha_generacion, comentarios, investido,
		fecha_nacimiento, foto_tomada, pasaporte, folio_pasaporte, fm,
		ipad, closet, llegada_secundaria, pday, host,
		tres_semanas, device, correo_misional, correo_personal, fecha_presencial,
		activo, created_at, updated_at
	) VALUES (
		:id, :id_distrito, :tipo, :rama, :distrito, :pais,
		:numero_lista, :numero_companerismo, :tratamiento, :nombre_misionero,
		:companero, :mision_asignada, :estaca, :hospedaje, :foto,
		:fecha_llegada, :fecha_salida, :fecha_generacion, :comentarios, :investido,
		:fecha_nacimiento, :foto_tomada, :pasaporte, :folio_pasaporte, :fm,
		:ipad, :closet, :llegada_secundaria, :pday, :host,
		:tres_semanas, :device, :correo_misional, :correo_personal, :fecha_presencial,
		:activo, :created_at, :updated_at
	)`

// InsertNewBatch inserts records whose id is not yet present, inside one
// transaction. Existing ids are skipped, never updated.
func (a *MissionaryAdapter) InsertNewBatch(ctx context.Context, records []*domain.MissionaryRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, apperr.DBConnectionFailed(err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sqlx.In("SELECT id FROM ccm_generaciones WHERE id IN (?)", ids)
	if err != nil {
		return 0, 0, apperr.DBInsertFailed(err)
	}
	var existingIDs []int64
	if err := tx.SelectContext(ctx, &existingIDs, tx.Rebind(query), args...); err != nil {
		return 0, 0, apperr.DBInsertFailed(err)
	}
	existing := make(map[int64]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	inserted, skipped := 0, 0
	for _, record := range records {
		if existing[record.ID] {
			skipped++
			continue
		}
		if _, err := tx.NamedExecContext(ctx, insertMissionaryQuery, newMissionaryRow(record)); err != nil {
			logger.Error("[MissionaryAdapter.InsertNewBatch] insert id=%d failed: %v", record.ID, err)
			return 0, 0, apperr.DBInsertFailed(err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, apperr.DBInsertFailed(err)
	}
	return inserted, skipped, nil
}

func (a *MissionaryAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return apperr.DBConnectionFailed(err)
	}
	return nil
}
