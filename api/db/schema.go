// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package db

var (
	schema = `
CREATE TABLE IF NOT EXISTS Assertions (
    Hash BLOB NOT NULL PRIMARY KEY,
    ConfirmPeriodBlocks INTEGER NOT NULL,
    RequiredStake TEXT NOT NULL,
    ParentAssertionHash BLOB NOT NULL,
    InboxMaxCount TEXT NOT NULL,
    AfterInboxBatchAcc BLOB NOT NULL,
    WasmModuleRoot BLOB NOT NULL,
    ChallengeManager BLOB NOT NULL,
    CreationBlock INTEGER NOT NULL,
    TransactionHash BLOB NOT NULL,
    FirstChildBlock INTEGER,
    SecondChildBlock INTEGER,
    IsFirstChild BOOLEAN NOT NULL,
    Status TEXT NOT NULL,
    LastUpdatedAt DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS Edges (
    Id BLOB NOT NULL PRIMARY KEY,
    ChallengeLevel INTEGER NOT NULL,
    OriginId BLOB NOT NULL,
    StartHistoryRoot BLOB NOT NULL,
    StartHeight INTEGER NOT NULL,
    EndHistoryRoot BLOB NOT NULL,
    EndHeight INTEGER NOT NULL,
    CreatedAtBlock INTEGER NOT NULL,
    MutualId BLOB NOT NULL,
    ClaimId BLOB NOT NULL,
    HasChildren BOOLEAN NOT NULL,
    LowerChildId BLOB NOT NULL,
    UpperChildId BLOB NOT NULL,
    MiniStaker BLOB NOT NULL,
    AssertionHash BLOB NOT NULL,
    TimeUnrivaled INTEGER NOT NULL,
    HasRival BOOLEAN NOT NULL,
    Status TEXT NOT NULL,
    HasLengthOneRival BOOLEAN NOT NULL,
    LastUpdatedAt DATETIME NOT NULL,
    IsRoyal BOOLEAN NOT NULL,
    Ancestors TEXT NOT NULL,
    CumulativePathTimer INTEGER NOT NULL,
    FOREIGN KEY(AssertionHash) REFERENCES Assertions(Hash)
);

CREATE INDEX IF NOT EXISTS idx_edge_assertion ON Edges(AssertionHash);
CREATE INDEX IF NOT EXISTS idx_edge_origin ON Edges(OriginId);
CREATE INDEX IF NOT EXISTS idx_edge_claim ON Edges(ClaimId);
CREATE INDEX IF NOT EXISTS idx_assertion_creation ON Assertions(CreationBlock);
`
)
