package sqlinline

// SQLite dialect of the job statements. Timestamps are stored as Unix
// nanoseconds supplied by the caller so ordering keeps full precision.

const QSQLiteEnsureImageJobsSchema = `--sql 9d2762df-63b7-4723-99fd-8580c7049cb8
create table if not exists image_jobs (
    id            text primary key,
    subject_ref   text not null default '',
    owner_ref     text not null default '',
    prompt        text not null,
    status        text not null,
    result_ref    text not null default '',
    error_message text not null default '',
    version       integer not null default 1,
    created_at    integer not null,
    updated_at    integer not null
);
create index if not exists image_jobs_status_created_idx on image_jobs (status, created_at, id);
create index if not exists image_jobs_created_idx on image_jobs (created_at);
`

const QSQLiteInsertImageJob = `--sql 920f88a3-79e5-434b-b7df-ac8c3f6af5e1
insert into image_jobs (id, subject_ref, owner_ref, prompt, status, version, created_at, updated_at)
values (?, ?, ?, ?, ?, 1, ?, ?);
`

const QSQLiteSelectImageJob = `--sql df4ccf0f-d3c8-4b27-883f-e422847a6534
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where id = ?;
`

const QSQLiteUpdateImageJobStatus = `--sql 9fb35d07-623d-4924-9b1f-83f9b9d415b6
update image_jobs
set status = ?,
    result_ref = coalesce(?, result_ref),
    error_message = coalesce(?, error_message),
    version = version + 1,
    updated_at = ?
where id = ?;
`

const QSQLiteTransitionImageJobStatus = `--sql b39e97ee-9e04-4d69-8142-fa2ac08bb252
update image_jobs
set status = ?,
    result_ref = coalesce(?, result_ref),
    error_message = coalesce(?, error_message),
    version = version + 1,
    updated_at = ?
where id = ?
  and status = ?
  and version = ?;
`

const QSQLiteHeartbeatImageJob = `--sql 55643163-d2c4-4bd3-954e-8aa8c13c3888
update image_jobs
set updated_at = ?,
    version = version + 1
where id = ?
  and status = 'processing';
`

const QSQLiteListImageJobsByStatus = `--sql 718227d5-76e1-48bd-88d5-3d6576799d19
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where status = ?
order by created_at asc, id asc;
`

const QSQLiteSelectLatestCompletedImageJob = `--sql 97cc2ff0-ef4f-4981-a13f-17f7606d31c2
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where status = 'completed'
order by updated_at desc
limit 1;
`

const QSQLiteCountPendingImageJobsBefore = `--sql caf415c7-6a2b-496d-a8bf-c4191d28aabf
select count(*)
from image_jobs
where status = 'pending'
  and created_at < ?;
`

const QSQLiteFailPendingImageJobs = `--sql f9dd3b73-122e-44e1-b0cb-756504f7c354
update image_jobs
set status = 'failed',
    error_message = ?,
    version = version + 1,
    updated_at = ?
where status = 'pending';
`

const QSQLiteDeleteImageJobsBefore = `--sql 9b1382d8-b7ea-4f9d-b1cc-1ddcc7cca74b
delete from image_jobs
where created_at < ?;
`
