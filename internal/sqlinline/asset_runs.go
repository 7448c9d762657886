package sqlinline

const QEnsureAssetRunsTable = `--sql 3c1f0b8e-5d2a-4e61-9b7f-0a4d6c2e8f13
create table if not exists asset_runs (
    run_id      uuid        not null,
    seq         integer     not null,
    asset_name  text        not null,
    job_id      text        not null default '',
    source_url  text        not null default '',
    outcome     text        not null,
    stage       text        not null default '',
    error_kind  text        not null default '',
    error_text  text        not null default '',
    outputs     jsonb       not null default '[]'::jsonb,
    duration_ms bigint      not null default 0,
    created_at  timestamptz not null default now(),
    primary key (run_id, seq)
);
`

const QInsertAssetRun = `--sql 9e6b2a47-1c3d-4f58-8a0e-2b7c5d9f4e61
insert into asset_runs (run_id, seq, asset_name, job_id, source_url, outcome, stage, error_kind, error_text, outputs, duration_ms)
values ($1::uuid, $2::integer, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::text, $10::jsonb, $11::bigint)
on conflict (run_id, seq) do update set
    outcome = excluded.outcome,
    stage = excluded.stage,
    error_kind = excluded.error_kind,
    error_text = excluded.error_text,
    outputs = excluded.outputs,
    duration_ms = excluded.duration_ms;
`

const QSelectLastFailures = `--sql 5a0d7c3e-8b14-4f2a-9c6e-1d3f7b5a9e02
select asset_name, error_kind, error_text
from asset_runs
where run_id = $1::uuid and outcome = 'failed'
order by seq asc;
`
