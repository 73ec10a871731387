package report

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/db"
	"github.com/pivotal-cf/protogate/policy"
)

// BuildProtocolViolationsReport lists the endpoints from the most recent
// probe run that completed a handshake with a version p does not allow.
func BuildProtocolViolationsReport(database *db.Database, p policy.Policy) (Report, error) {
	report := Report{
		Title: "Endpoints accepting non-approved protocol versions:",
		Header: []string{
			"Host",
			"Port",
			"Accepted Protocol(s)",
			"Non-approved Protocol(s)",
		},
		Footnote: fmt.Sprintf("Approved protocol versions: %s. Disabling older versions is not backwards compatible; check with the owners of each client first.", strings.Join(p.Names(), ", ")),
	}

	probeID, err := database.LatestProbeID()
	if err == sql.ErrNoRows {
		return report, nil
	}
	if err != nil {
		return Report{}, err
	}

	rows, err := database.DB().Query(`
	SELECT e.host, e.port, r.wire_version
	FROM endpoints e
	JOIN protocol_results r
	ON r.endpoint_id = e.id
	WHERE e.probe_id = ?
	AND r.accepted = 1
	ORDER BY e.host, e.port, r.wire_version`, probeID)
	if err != nil {
		return Report{}, err
	}

	defer rows.Close()

	type endpoint struct {
		host string
		port string
	}

	accepted := map[endpoint][]protogate.ProtocolVersion{}
	var order []endpoint

	for rows.Next() {
		var (
			host, port string
			wire       int
		)

		if err := rows.Scan(&host, &port, &wire); err != nil {
			return Report{}, err
		}

		e := endpoint{host, port}
		if _, seen := accepted[e]; !seen {
			order = append(order, e)
		}
		accepted[e] = append(accepted[e], protogate.ProtocolVersion(wire))
	}

	if err := rows.Err(); err != nil {
		return Report{}, err
	}

	for _, e := range order {
		var violations []string
		for _, v := range accepted[e] {
			if !p.Allows(v) {
				violations = append(violations, v.String())
			}
		}

		if len(violations) == 0 {
			continue
		}

		report.Rows = append(report.Rows, []string{
			e.host,
			e.port,
			joinVersions(accepted[e]),
			strings.Join(violations, " "),
		})
	}

	return report, nil
}

func joinVersions(versions []protogate.ProtocolVersion) string {
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.String())
	}
	return strings.Join(names, " ")
}
