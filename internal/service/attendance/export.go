package attendance

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
)

const exportSheet = "Presensi"

var exportHeaders = []interface{}{
	"Tanggal",
	"ID Karyawan",
	"Status",
	"Jam Masuk",
	"Jam Pulang",
	"Durasi (menit)",
	"Latitude",
	"Longitude",
	"Jenis Pengajuan",
	"Status Pengajuan",
	"Alasan",
	"Disetujui Oleh",
	"Catatan",
}

func writeAttendanceWorkbook(rows []attendance.Attendance, loc *time.Location) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headers := exportHeaders
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, att := range rows {
		resp := mapAttendanceToResponse(att, loc)

		values := []interface{}{
			resp.Date,
			resp.EmployeeID,
			resp.Status,
			clockOrEmpty(att.CheckIn, loc),
			clockOrEmpty(att.CheckOut, loc),
			intOrEmpty(resp.WorkingMinutes),
			floatOrEmpty(resp.CheckInLatitude),
			floatOrEmpty(resp.CheckInLongitude),
			"", "", "", "", "",
		}
		if resp.Request != nil {
			values[8] = resp.Request.Kind
			values[9] = resp.Request.Status
			values[10] = resp.Request.Reason
			values[11] = stringOrEmpty(resp.Request.ApprovedBy)
			values[12] = stringOrEmpty(resp.Request.Notes)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	return f.WriteToBuffer()
}

func clockOrEmpty(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("15:04")
}

func intOrEmpty(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
