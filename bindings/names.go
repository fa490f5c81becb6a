package bindings

// Hook names. The set is closed: call sites depend on exactly these.
const (
	HookInstallNumber          = "project_install_number"
	HookProjectNumber          = "project_project_number"
	HookProjectDescription     = "project_project_description"
	HookInstallDescription     = "project_install_description"
	HookRelationName           = "project_relation_name"
	HookInstallPathBasenames   = "install_path_basenames"
	HookProjectPathBasenames   = "project_path_basenames"
	HookProjectPathIsMatch     = "project_path_is_match"
	HookIsValidProjectLocation = "is_valid_project_location"
	HookCreateProjectFolder    = "create_project_folder"
	HookProjectPrice           = "project_price"
	HookSQLWhereGetProjects    = "sql_where_get_projects"
	HookSQLGetProjects         = "sql_get_projects"
	HookSQLGetPlanning         = "sql_get_planning"
	HookSQLGetAttachedDocs     = "sql_get_attached_documents"
	HookSQLGetTimesheets       = "sql_get_timesheets"
	HookFileIcon               = "file_icon"
	HookFilePreviewContent     = "file_preview_content"
)

// Names lists every hook in the vocabulary.
var Names = []string{
	HookInstallNumber,
	HookProjectNumber,
	HookProjectDescription,
	HookInstallDescription,
	HookRelationName,
	HookInstallPathBasenames,
	HookProjectPathBasenames,
	HookProjectPathIsMatch,
	HookIsValidProjectLocation,
	HookCreateProjectFolder,
	HookProjectPrice,
	HookSQLWhereGetProjects,
	HookSQLGetProjects,
	HookSQLGetPlanning,
	HookSQLGetAttachedDocs,
	HookSQLGetTimesheets,
	HookFileIcon,
	HookFilePreviewContent,
}
