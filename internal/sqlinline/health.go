package sqlinline

const QHealthCheck = `--sql 2c7b91e4-6f05-4a8d-b13e-58d6a92fc041
select 1;
`
