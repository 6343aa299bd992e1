package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS responses (
    url          TEXT PRIMARY KEY,
    dataset      TEXT NOT NULL,
    body         BLOB NOT NULL,
    size_bytes   INTEGER NOT NULL,
    fetched_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_responses_dataset ON responses(dataset);
CREATE INDEX IF NOT EXISTS idx_responses_fetched ON responses(fetched_at);
`
