package sqlinline

// QSetSubjectProperty writes one key of the subject's properties document.
const QSetSubjectProperty = `--sql 9df6b512-291c-4c59-8932-8e728c9a6753
update users
set properties = jsonb_set(coalesce(properties, '{}'::jsonb), array[$2::text], to_jsonb($3::text), true),
    updated_at = now()
where id::text = $1::text;
`
