package postgres

const createRawTableSQL = `
CREATE TABLE IF NOT EXISTS raw_samples (
    time timestamp WITH TIME ZONE NOT NULL,
    mooring text NOT NULL,
    serial text NOT NULL,
    temperature float8 NULL,
    conductivity float8 NULL,
    pressure float8 NULL,
    salinity float8 NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createRawHypertableSQL = `SELECT create_hypertable('raw_samples', 'time', if_not_exists => true);`

const createRawIndexSQL = `CREATE INDEX IF NOT EXISTS raw_samples_mooring_serial_time_idx ON raw_samples (mooring, serial, time DESC);`

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id text PRIMARY KEY,
    mooring text NOT NULL,
    stages text NULL,
    started_at timestamp WITH TIME ZONE NOT NULL,
    finished_at timestamp WITH TIME ZONE NULL,
    issues int NOT NULL DEFAULT 0,
    succeeded boolean NOT NULL DEFAULT false
);`

const createDeploymentWindowsTableSQL = `
CREATE TABLE IF NOT EXISTS deployment_windows (
    run_id text NOT NULL,
    mooring text NOT NULL,
    serial text NOT NULL,
    deploy_start timestamp WITH TIME ZONE NULL,
    deploy_end timestamp WITH TIME ZONE NULL,
    split_value float8 NULL,
    confidence text NULL
);`

const createClockOffsetsTableSQL = `
CREATE TABLE IF NOT EXISTS clock_offsets (
    run_id text NOT NULL,
    mooring text NOT NULL,
    serial text NOT NULL,
    start_offset float8 NULL,
    end_offset float8 NULL,
    avg_offset float8 NULL,
    drift_rate float8 NULL,
    offset_seconds float8 NULL,
    source text NULL,
    no_consensus boolean NOT NULL DEFAULT false
);`

const createGriddedTableSQL = `
CREATE TABLE IF NOT EXISTS gridded_samples (
    time timestamp WITH TIME ZONE NOT NULL,
    mooring text NOT NULL,
    run_id text NOT NULL,
    depths double precision[] NULL,
    temperature double precision[] NULL,
    salinity double precision[] NULL,
    pressure double precision[] NULL
);`

const createGriddedHypertableSQL = `SELECT create_hypertable('gridded_samples', 'time', if_not_exists => true);`

const createGriddedIndexSQL = `CREATE INDEX IF NOT EXISTS gridded_samples_mooring_time_idx ON gridded_samples (mooring, time DESC);`

const createProfilesTableSQL = `
CREATE TABLE IF NOT EXISTS full_depth_profiles (
    time timestamp WITH TIME ZONE NOT NULL,
    mooring text NOT NULL,
    run_id text NOT NULL,
    pressures double precision[] NULL,
    temperature double precision[] NULL,
    provenance text NULL
);`

const createProfilesHypertableSQL = `SELECT create_hypertable('full_depth_profiles', 'time', if_not_exists => true);`

const create1hViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS raw_samples_1h
WITH (timescaledb.continuous, timescaledb.materialized_only = false)
AS
SELECT
    time_bucket('1 hour', time) as bucket,
    mooring,
    serial,
    avg(temperature) as temperature,
    max(temperature) as max_temperature,
    min(temperature) as min_temperature,
    avg(conductivity) as conductivity,
    avg(pressure) as pressure,
    avg(salinity) as salinity,
    count(*) as samples
FROM raw_samples
GROUP BY bucket, mooring, serial
WITH NO DATA;`

const create1dViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS raw_samples_1d
WITH (timescaledb.continuous, timescaledb.materialized_only = false)
AS
SELECT
    time_bucket('1 day', time) as bucket,
    mooring,
    serial,
    avg(temperature) as temperature,
    max(temperature) as max_temperature,
    min(temperature) as min_temperature,
    avg(conductivity) as conductivity,
    avg(pressure) as pressure,
    avg(salinity) as salinity,
    count(*) as samples
FROM raw_samples
GROUP BY bucket, mooring, serial
WITH NO DATA;`

const addAggregationPolicy1hSQL = `SELECT add_continuous_aggregate_policy('raw_samples_1h', INTERVAL '2 years', INTERVAL '1 hour', INTERVAL '1 hour', if_not_exists => true);`
const addAggregationPolicy1dSQL = `SELECT add_continuous_aggregate_policy('raw_samples_1d', INTERVAL '10 years', INTERVAL '1 day', INTERVAL '1 day', if_not_exists => true);`
