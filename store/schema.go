// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package store

var schema = `
CREATE TABLE IF NOT EXISTS Runs (
    Id INTEGER PRIMARY KEY AUTOINCREMENT,
    AssertionHash BLOB NOT NULL,
    SnapshotBlock TEXT NOT NULL,
    EdgesChecked INTEGER NOT NULL,
    Violations INTEGER NOT NULL,
    CreatedAt DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS Origins (
    RunId INTEGER NOT NULL,
    Position INTEGER NOT NULL,
    OriginId BLOB NOT NULL,
    ChallengeLevel INTEGER NOT NULL,
    UnrivaledWindow TEXT NOT NULL,
    WindowResolved BOOLEAN NOT NULL,
    EdgesChecked INTEGER NOT NULL,
    PRIMARY KEY (RunId, Position),
    FOREIGN KEY(RunId) REFERENCES Runs(Id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS Findings (
    RunId INTEGER NOT NULL,
    Position INTEGER NOT NULL,
    OriginPosition INTEGER NOT NULL,
    Kind TEXT NOT NULL,
    OriginId BLOB NOT NULL,
    EdgeId BLOB NOT NULL,
    ClaimId BLOB NOT NULL,
    Expected TEXT NOT NULL,
    Actual TEXT NOT NULL,
    Detail TEXT NOT NULL,
    PRIMARY KEY (RunId, Position),
    FOREIGN KEY(RunId) REFERENCES Runs(Id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_assertion ON Runs(AssertionHash, Id);
CREATE INDEX IF NOT EXISTS idx_findings_kind ON Findings(Kind);
`
