package db

// Update the schema version when the DDL changes
const SchemaVersion = 1

const createDDL = `
CREATE TABLE probes (
	id integer PRIMARY KEY AUTOINCREMENT,
	timestamp datetime
);

CREATE TABLE endpoints (
	id integer PRIMARY KEY AUTOINCREMENT,
	probe_id integer,
	host text,
	port text,
	mutual bool,
	UNIQUE(host, port, probe_id),
	FOREIGN KEY(probe_id) REFERENCES probes(id)
);

CREATE TABLE protocol_results (
	id integer PRIMARY KEY AUTOINCREMENT,
	endpoint_id integer,
	version text,
	wire_version integer,
	accepted bool,
	detail text,
	probe_error text,
	FOREIGN KEY(endpoint_id) REFERENCES endpoints(id)
);

CREATE TABLE version (
	version integer
);

INSERT INTO version(version) VALUES(?);
`
