package sqllex

import "strings"

// OracleReservedWords lists the Oracle SQL reserved words that must be double-quoted when
// used as identifiers. Keys are upper case.
//
// Source: Oracle Database SQL Language Reference, "Oracle SQL Reserved Words" (19c).
var OracleReservedWords = map[string]struct{}{
	"ACCESS": {}, "ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "ANY": {}, "AS": {}, "ASC": {},
	"AUDIT": {}, "BETWEEN": {}, "BY": {}, "CHAR": {}, "CHECK": {}, "CLUSTER": {}, "COLUMN": {},
	"COMMENT": {}, "COMPRESS": {}, "CONNECT": {}, "CREATE": {}, "CURRENT": {}, "DATE": {}, "DECIMAL": {},
	"DEFAULT": {}, "DELETE": {}, "DESC": {}, "DISTINCT": {}, "DROP": {}, "ELSE": {},
	"EXCLUSIVE": {}, "EXISTS": {}, "FILE": {}, "FLOAT": {}, "FOR": {}, "FROM": {}, "GRANT": {},
	"GROUP": {}, "HAVING": {}, "IDENTIFIED": {}, "IMMEDIATE": {}, "IN": {}, "INCREMENT": {},
	"INDEX": {}, "INITIAL": {}, "INSERT": {}, "INTEGER": {}, "INTERSECT": {}, "INTO": {}, "IS": {},
	"LEVEL": {}, "LIKE": {}, "LOCK": {}, "LONG": {}, "MAXEXTENTS": {}, "MINUS": {}, "MLSLABEL": {},
	"MODE": {}, "MODIFY": {}, "NOAUDIT": {}, "NOCOMPRESS": {}, "NOT": {}, "NOWAIT": {}, "NULL": {},
	"NUMBER": {}, "OF": {}, "OFFLINE": {}, "ON": {}, "ONLINE": {}, "OPTION": {}, "OR": {},
	"ORDER": {}, "PCTFREE": {}, "PRIOR": {}, "PUBLIC": {}, "RAW": {}, "RENAME": {}, "RESOURCE": {},
	"REVOKE": {}, "ROW": {}, "ROWID": {}, "ROWNUM": {}, "ROWS": {}, "SELECT": {}, "SESSION": {},
	"SET": {}, "SHARE": {}, "SIZE": {}, "SMALLINT": {}, "START": {}, "SUCCESSFUL": {},
	"SYNONYM": {}, "SYSDATE": {}, "TABLE": {}, "THEN": {}, "TO": {}, "TRIGGER": {}, "UID": {},
	"UNION": {}, "UNIQUE": {}, "UPDATE": {}, "USER": {}, "VALIDATE": {}, "VALUES": {},
	"VARCHAR": {}, "VARCHAR2": {}, "VIEW": {}, "WHENEVER": {}, "WHERE": {}, "WITH": {},
}

// IsOracleReservedWord reports whether word is reserved, ignoring case.
func IsOracleReservedWord(word string) bool {
	_, exists := OracleReservedWords[strings.ToUpper(word)]
	return exists
}
