package postgres

// schema is applied by Migrate. NUMERIC holds the declared price exactly;
// the engine never stores derived tax amounts.
const schema = `
CREATE TABLE IF NOT EXISTS harberger_assets (
    id              TEXT PRIMARY KEY,
    price           NUMERIC     NOT NULL,
    last_settlement TIMESTAMPTZ NOT NULL,
    defaulted       BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harberger_assets_defaulted
    ON harberger_assets (defaulted);
`
