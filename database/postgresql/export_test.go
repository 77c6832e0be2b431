package postgresql

const (
	ListTablesQuery      = listTablesQuery
	DescribeColumnsQuery = describeColumnsQuery
	PrimaryKeyQuery      = primaryKeyQuery
	ForeignKeysQuery     = foreignKeysQuery
)
