package sqlinline

const QEnsureImageJobsSchema = `--sql a3a4d821-9977-47ef-ad75-2fe2ed8f6a40
create table if not exists image_jobs (
    id            text primary key,
    subject_ref   text not null default '',
    owner_ref     text not null default '',
    prompt        text not null,
    status        text not null,
    result_ref    text not null default '',
    error_message text not null default '',
    version       bigint not null default 1,
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now()
);
create index if not exists image_jobs_status_created_idx on image_jobs (status, created_at, id);
create index if not exists image_jobs_created_idx on image_jobs (created_at);
`

const QInsertImageJob = `--sql fdabc0dc-fbb1-4b86-8368-79ca4814f15d
insert into image_jobs (id, subject_ref, owner_ref, prompt, status, version, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::text, 1, now(), now())
returning version, created_at, updated_at;
`

const QSelectImageJob = `--sql 79a3e43f-a18b-4fd1-90f3-3dfe694c9206
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where id = $1::text;
`

const QUpdateImageJobStatus = `--sql dbacffd6-22da-4cd4-ab07-d214556b7594
update image_jobs
set status = $2::text,
    result_ref = coalesce($3::text, result_ref),
    error_message = coalesce($4::text, error_message),
    version = version + 1,
    updated_at = now()
where id = $1::text;
`

const QTransitionImageJobStatus = `--sql be10c28d-e213-48ef-82d9-fe4db05ec1c4
update image_jobs
set status = $4::text,
    result_ref = coalesce($5::text, result_ref),
    error_message = coalesce($6::text, error_message),
    version = version + 1,
    updated_at = now()
where id = $1::text
  and status = $2::text
  and version = $3::bigint;
`

const QHeartbeatImageJob = `--sql 11c87822-46d9-4950-b94c-4d312c78f3d3
update image_jobs
set updated_at = now(),
    version = version + 1
where id = $1::text
  and status = 'processing';
`

const QListImageJobsByStatus = `--sql 9f08ecfb-98ed-4aa4-aa33-69c339816cf4
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where status = $1::text
order by created_at asc, id asc;
`

const QSelectLatestCompletedImageJob = `--sql 6d770d8a-50e4-44d2-8be5-25a6f7256b4a
select id, subject_ref, owner_ref, prompt, status, result_ref, error_message, version, created_at, updated_at
from image_jobs
where status = 'completed'
order by updated_at desc
limit 1;
`

const QCountPendingImageJobsBefore = `--sql 7857db77-f1a5-4b3e-9aa6-df26c30ea38b
select count(*)
from image_jobs
where status = 'pending'
  and created_at < $1::timestamptz;
`

const QFailPendingImageJobs = `--sql daeefb83-04a1-4d01-b5fc-4ebd87efaa55
update image_jobs
set status = 'failed',
    error_message = $1::text,
    version = version + 1,
    updated_at = now()
where status = 'pending';
`

const QDeleteImageJobsBefore = `--sql 9133039d-a3fe-4afe-9e56-9c53fde13c06
delete from image_jobs
where created_at < $1::timestamptz;
`
